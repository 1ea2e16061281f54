//go:build windows

package webgpu

// WGSL compute shaders.
// Using string constants instead of embed for simplicity.

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on workgroups along one dispatch
// dimension. Larger launches spill into the y dimension.
const maxWorkgroupsPerDim = 65535

// addShader performs element-wise addition: result = a + b.
const addShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let idx = global_id.x + global_id.y * groups.x * 256u;
    if (idx < params.size) {
        result[idx] = a[idx] + b[idx];
    }
}
`

// mulBroadcastShader multiplies two tensors of rank <= 4 with broadcasting.
// Operands are addressed through strides that are 0 along broadcast dims.
const mulBroadcastShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    out_shape: vec4<u32>,
    a_strides: vec4<u32>,
    b_strides: vec4<u32>,
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let idx = global_id.x + global_id.y * groups.x * 256u;
    if (idx >= params.size) {
        return;
    }
    let s = params.out_shape;
    let coord = vec4<u32>(
        idx / (s.y * s.z * s.w),
        (idx / (s.z * s.w)) % s.y,
        (idx / s.w) % s.z,
        idx % s.w,
    );
    result[idx] = a[dot(coord, params.a_strides)] * b[dot(coord, params.b_strides)];
}
`

// padReplicateShader pads each [H, W] plane by pad on every side,
// repeating border pixels.
const padReplicateShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    planes: u32,
    height: u32,
    width: u32,
    pad: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let idx = global_id.x + global_id.y * groups.x * 256u;
    let out_h = params.height + 2u * params.pad;
    let out_w = params.width + 2u * params.pad;
    if (idx >= params.planes * out_h * out_w) {
        return;
    }
    let x = i32(idx % out_w);
    let y = i32((idx / out_w) % out_h);
    let p = idx / (out_w * out_h);
    let sy = u32(clamp(y - i32(params.pad), 0, i32(params.height) - 1));
    let sx = u32(clamp(x - i32(params.pad), 0, i32(params.width) - 1));
    result[idx] = input[p * params.height * params.width + sy * params.width + sx];
}
`

// synthCommon holds the bindings and sampling helpers shared by the synthesis
// shaders. Binding 1 is always the input frame and binding 5 the params.
const synthCommon = `
struct Params {
    batch: u32,
    channels: u32,
    in_height: u32,
    in_width: u32,
    height: u32,
    width: u32,
    kernel_size: u32,
    dilation: u32,
}

struct Split {
    whole: i32,
    frac: f32,
}

const SATURATION: f32 = 1073741824.0;

// Integer part by truncation toward zero. Offsets beyond the saturation
// bound land on the border with no fractional weight.
fn split_offset(v: f32) -> Split {
    if (v != v) {
        return Split(0, 0.0);
    }
    if (v >= SATURATION) {
        return Split(1073741824, 0.0);
    }
    if (v <= -SATURATION) {
        return Split(-1073741824, 0.0);
    }
    let whole = i32(v);
    return Split(whole, v - f32(whole));
}

fn sample_tap(plane: u32, y: i32, x: i32, i: i32, j: i32, alpha: f32, beta: f32) -> f32 {
    let a = split_offset(alpha);
    let b = split_offset(beta);
    let d = i32(params.dilation);
    let max_row = i32(params.in_height) - 1;
    let max_col = i32(params.in_width) - 1;

    let row = y + i * d + a.whole;
    let col = x + j * d + b.whole;
    let top = u32(clamp(row, 0, max_row));
    let bottom = u32(clamp(row + 1, 0, max_row));
    let left = u32(clamp(col, 0, max_col));
    let right = u32(clamp(col + 1, 0, max_col));

    let w = params.in_width;
    let v00 = input[plane + top * w + left];
    let v10 = input[plane + bottom * w + left];
    let v01 = input[plane + top * w + right];
    let v11 = input[plane + bottom * w + right];

    let fa = a.frac;
    let fb = b.frac;
    return v00 * (1.0 - fa) * (1.0 - fb) + v10 * fa * (1.0 - fb) + v01 * (1.0 - fa) * fb + v11 * fa * fb;
}
`

// synthForwardShader computes one output element per thread:
// output[n,c,y,x] = sum_t weight[n,t,y,x] * sample_tap(...).
const synthForwardShader = synthCommon + `
@group(0) @binding(0) var<storage, read> weight: array<f32>;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read> row_offset: array<f32>;
@group(0) @binding(3) var<storage, read> col_offset: array<f32>;
@group(0) @binding(4) var<storage, read_write> result: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let idx = global_id.x + global_id.y * groups.x * 256u;
    let spatial = params.height * params.width;
    if (idx >= params.batch * params.channels * spatial) {
        return;
    }
    let x = idx % params.width;
    let y = (idx / params.width) % params.height;
    let c = (idx / spatial) % params.channels;
    let n = idx / (spatial * params.channels);

    let k = params.kernel_size;
    let plane = (n * params.channels + c) * params.in_height * params.in_width;
    let base = n * k * k * spatial + y * params.width + x;

    var acc: f32 = 0.0;
    for (var i = 0u; i < k; i++) {
        for (var j = 0u; j < k; j++) {
            let t = base + (i * k + j) * spatial;
            acc += weight[t] * sample_tap(plane, i32(y), i32(x), i32(i), i32(j), row_offset[t], col_offset[t]);
        }
    }
    result[idx] = acc;
}
`

// synthWeightGradShader computes one weight-gradient element per thread:
// grad_weight[n,t,y,x] = sum_c grad_output[n,c,y,x] * sample_tap(...).
const synthWeightGradShader = synthCommon + `
@group(0) @binding(0) var<storage, read> grad_output: array<f32>;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read> row_offset: array<f32>;
@group(0) @binding(3) var<storage, read> col_offset: array<f32>;
@group(0) @binding(4) var<storage, read_write> result: array<f32>;
@group(0) @binding(5) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let idx = global_id.x + global_id.y * groups.x * 256u;
    let spatial = params.height * params.width;
    let k = params.kernel_size;
    let taps = k * k;
    if (idx >= params.batch * taps * spatial) {
        return;
    }
    let x = idx % params.width;
    let y = (idx / params.width) % params.height;
    let t = (idx / spatial) % taps;
    let n = idx / (spatial * taps);
    let i = i32(t / k);
    let j = i32(t % k);
    let alpha = row_offset[idx];
    let beta = col_offset[idx];

    var acc: f32 = 0.0;
    for (var c = 0u; c < params.channels; c++) {
        let nc = n * params.channels + c;
        let plane = nc * params.in_height * params.in_width;
        acc += grad_output[nc * spatial + y * params.width + x] * sample_tap(plane, i32(y), i32(x), i, j, alpha, beta);
    }
    result[idx] = acc;
}
`

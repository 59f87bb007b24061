package webgpu

import "github.com/go-drift/motion/pkg/animation"

// Every effect shader reads its animated value from the same uniform block.
const paramsBlock = `
struct Params {
    value: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(1) @binding(0) var source: texture_2d<f32>;
@group(1) @binding(1) var source_sampler: sampler;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};
`

const fadeShader = paramsBlock + `
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let c = textureSample(source, source_sampler, in.uv);
    return vec4<f32>(c.rgb, c.a * clamp(params.value, 0.0, 1.0));
}
`

const scaleShader = paramsBlock + `
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let s = max(params.value, 0.0001);
    let uv = (in.uv - vec2<f32>(0.5, 0.5)) / s + vec2<f32>(0.5, 0.5);
    let c = textureSample(source, source_sampler, uv);
    let inside = all(uv >= vec2<f32>(0.0, 0.0)) && all(uv <= vec2<f32>(1.0, 1.0));
    return select(vec4<f32>(0.0, 0.0, 0.0, 0.0), c, inside);
}
`

// translateShader serves Slide and Spring: both animate a horizontal offset
// in pixels.
const translateShader = paramsBlock + `
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let size = vec2<f32>(textureDimensions(source));
    let uv = in.uv - vec2<f32>(params.value / size.x, 0.0);
    let c = textureSample(source, source_sampler, uv);
    return select(vec4<f32>(0.0, 0.0, 0.0, 0.0), c, uv.x >= 0.0 && uv.x <= 1.0);
}
`

const rippleShader = paramsBlock + `
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let d = distance(in.uv, vec2<f32>(0.5, 0.5));
    let radius = clamp(params.value, 0.0, 1.0) * 0.7071;
    let edge = smoothstep(radius, radius - 0.02, d);
    let wave = sin((d - radius) * 80.0) * 0.004 * edge;
    let c = textureSample(source, source_sampler, in.uv + vec2<f32>(wave, wave));
    return vec4<f32>(c.rgb, c.a * edge);
}
`

const morphShader = paramsBlock + `
@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let t = clamp(params.value, 0.0, 1.0);
    let uv = vec2<f32>((in.uv.x - 0.5) / max(t, 0.0001) + 0.5, in.uv.y);
    var acc = vec4<f32>(0.0, 0.0, 0.0, 0.0);
    for (var i = -2; i <= 2; i = i + 1) {
        let o = f32(i) * (1.0 - t) * 0.01;
        acc = acc + textureSample(source, source_sampler, uv + vec2<f32>(o, 0.0));
    }
    return acc / 5.0;
}
`

// shaderSource returns the WGSL for kind.
func shaderSource(kind animation.Kind) (string, bool) {
	switch kind {
	case animation.Fade:
		return fadeShader, true
	case animation.Scale:
		return scaleShader, true
	case animation.Slide, animation.Spring:
		return translateShader, true
	case animation.Ripple:
		return rippleShader, true
	case animation.Morph:
		return morphShader, true
	default:
		return "", false
	}
}

package atmos

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/atmos3d/atmos/shaders"
)

type GpuState struct {
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration
}

func createGpuState(s *WindowState) *GpuState {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	// wraps the GLFW window into a wgpu surface
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.windowGlfw))
	// finds a suitable GPU (discrete GPU preferred)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		panic(err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Atmos Device",
	})
	if err != nil {
		panic(err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(s.WindowWidth),
		Height:      uint32(s.WindowHeight),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	return &GpuState{
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         queue,
		surfaceConfig: &surfaceConfig,
	}
}

// particleInstance matches the WGSL instance attributes: four matrix
// columns plus an RGBA color.
type particleInstance struct {
	Model mgl32.Mat4
	Color [4]float32
}

type cameraUniform struct {
	ViewProj mgl32.Mat4
}

// meshGpu is the uploaded form of one species geometry.
type meshGpu struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   uint32
}

// effectGpu is the per-compositor instance buffer plus its CPU staging
// slice, kept between frames to avoid re-packing allocations.
type effectGpu struct {
	instanceBuffer *wgpu.Buffer
	capacity       int
	staging        []particleInstance
}

type rendererState struct {
	gpu             *GpuState
	pipeline        *wgpu.RenderPipeline
	cameraBuffer    *wgpu.Buffer
	cameraBindGroup *wgpu.BindGroup

	meshes  map[AssetId]*meshGpu
	effects map[*EffectCompositor]*effectGpu
}

// RendererModule draws every active compositor with one instanced draw
// call each. Requires PlatformWindowModule.
type RendererModule struct{}

func (m RendererModule) Install(app *App, cmd *Commands) {
	ws := Resource[WindowState](cmd)
	if ws == nil {
		panic("RendererModule requires PlatformWindowModule")
	}

	gpu := createGpuState(ws)
	pipeline := createParticlePipeline(gpu)

	cameraBuffer, err := gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "CameraBuffer",
		Size:  uint64(unsafe.Sizeof(cameraUniform{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	defer bindGroupLayout.Release()
	cameraBindGroup, err := gpu.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "CameraBindGroup",
		Layout: bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  cameraBuffer,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		panic(err)
	}

	cmd.AddResources(&rendererState{
		gpu:             gpu,
		pipeline:        pipeline,
		cameraBuffer:    cameraBuffer,
		cameraBindGroup: cameraBindGroup,
		meshes:          make(map[AssetId]*meshGpu),
		effects:         make(map[*EffectCompositor]*effectGpu),
	})

	app.UseSystem(
		System(renderSystem).
			InStage(Render),
	)
}

func createParticlePipeline(gpu *GpuState) *wgpu.RenderPipeline {
	shader, err := gpu.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticleWGSL},
	})
	if err != nil {
		panic(err)
	}
	defer shader.Release()

	vertexLayout := wgpu.VertexBufferLayout{
		ArrayStride: uint64(unsafe.Sizeof(ParticleVertex{})),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		},
	}
	instanceLayout := wgpu.VertexBufferLayout{
		ArrayStride: uint64(unsafe.Sizeof(particleInstance{})),
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 2},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 5},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 64, ShaderLocation: 6},
		},
	}

	pipeline, err := gpu.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "ParticlePipeline",
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout, instanceLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    gpu.surfaceConfig.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone, // petals and leaves are two-sided
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		panic(err)
	}
	return pipeline
}

// ensureMesh uploads a geometry's vertex and index buffers on first
// sight and wires its Dispose to release them exactly once.
func (rs *rendererState) ensureMesh(g *Geometry) *meshGpu {
	if mesh, ok := rs.meshes[g.Id()]; ok {
		return mesh
	}

	vertices := g.Vertices()
	vSize := uint64(len(vertices)) * uint64(unsafe.Sizeof(ParticleVertex{}))
	vertexBuffer, err := rs.gpu.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleVertexBuffer " + g.Label(),
		Contents: unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		panic(err)
	}
	indexBuffer, err := rs.gpu.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleIndexBuffer " + g.Label(),
		Contents: wgpu.ToBytes(g.Indices()),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		panic(err)
	}

	mesh := &meshGpu{
		vertexBuffer: vertexBuffer,
		indexBuffer:  indexBuffer,
		indexCount:   uint32(len(g.Indices())),
	}
	rs.meshes[g.Id()] = mesh

	id := g.Id()
	g.attachRelease(func() {
		if m, ok := rs.meshes[id]; ok {
			m.vertexBuffer.Release()
			m.indexBuffer.Release()
			delete(rs.meshes, id)
		}
	})
	return mesh
}

// ensureInstances sizes (or resizes) the GPU instance buffer for one
// compositor and uploads the staged instances when dirty.
func (rs *rendererState) ensureInstances(c *EffectCompositor) *effectGpu {
	eg, ok := rs.effects[c]
	if !ok {
		eg = &effectGpu{}
		rs.effects[c] = eg
	}

	buf := c.Buffer()
	count := buf.Count()
	if eg.instanceBuffer == nil || eg.capacity != count {
		if eg.instanceBuffer != nil {
			eg.instanceBuffer.Release()
		}
		var err error
		eg.instanceBuffer, err = rs.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ParticleInstanceBuffer",
			Size:  uint64(count) * uint64(unsafe.Sizeof(particleInstance{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		eg.capacity = count
		eg.staging = make([]particleInstance, count)
		buf.Flush() // force a full upload into the fresh buffer
	}

	transformsDirty, colorsDirty := buf.TakeDirty()
	if transformsDirty || colorsDirty {
		opacity := c.Params().Physics().Opacity
		matrices := buf.Matrices()
		colors := buf.Colors()
		for i := range eg.staging {
			eg.staging[i].Model = matrices[i]
			eg.staging[i].Color = [4]float32{colors[i*3], colors[i*3+1], colors[i*3+2], opacity}
		}
		sizeBytes := uint64(count) * uint64(unsafe.Sizeof(particleInstance{}))
		rs.gpu.queue.WriteBuffer(eg.instanceBuffer, 0,
			unsafe.Slice((*byte)(unsafe.Pointer(&eg.staging[0])), sizeBytes))
	}
	return eg
}

// pruneEffects drops GPU state for compositors that were unmounted.
func (rs *rendererState) pruneEffects(active []*EffectCompositor) {
	for c, eg := range rs.effects {
		alive := false
		for _, a := range active {
			if a == c {
				alive = true
				break
			}
		}
		if !alive || c.Disposed() {
			if eg.instanceBuffer != nil {
				eg.instanceBuffer.Release()
			}
			delete(rs.effects, c)
		}
	}
}

func (rs *rendererState) reconfigureIfResized(ws *WindowState) {
	w, h := uint32(ws.WindowWidth), uint32(ws.WindowHeight)
	if w == 0 || h == 0 {
		return
	}
	if rs.gpu.surfaceConfig.Width != w || rs.gpu.surfaceConfig.Height != h {
		rs.gpu.surfaceConfig.Width = w
		rs.gpu.surfaceConfig.Height = h
		rs.gpu.surface.Configure(rs.gpu.adapter, rs.gpu.device, rs.gpu.surfaceConfig)
	}
}

// renderSystem submits one instanced draw per active compositor.
func renderSystem(
	rs *rendererState,
	ws *WindowState,
	camera *Camera,
	registry *EffectRegistry,
	controller *WeatherController,
) {
	rs.reconfigureIfResized(ws)

	active := registry.Active()
	rs.pruneEffects(active)

	aspect := float32(1)
	if ws.WindowHeight > 0 {
		aspect = float32(ws.WindowWidth) / float32(ws.WindowHeight)
	}
	proj := mgl32.Perspective(camera.FovY, aspect, camera.Near, camera.Far)
	view := mgl32.LookAtV(camera.Position, camera.Target, camera.Up)
	uniform := cameraUniform{ViewProj: proj.Mul4(view)}
	rs.gpu.queue.WriteBuffer(rs.cameraBuffer, 0,
		unsafe.Slice((*byte)(unsafe.Pointer(&uniform)), unsafe.Sizeof(uniform)))

	// Upload everything before the pass starts recording.
	type drawItem struct {
		mesh  *meshGpu
		gpu   *effectGpu
		count uint32
	}
	draws := make([]drawItem, 0, len(active))
	for _, c := range active {
		if c.Disposed() || c.Buffer() == nil || c.Geometry() == nil || c.Geometry().Disposed() {
			continue
		}
		draws = append(draws, drawItem{
			mesh:  rs.ensureMesh(c.Geometry()),
			gpu:   rs.ensureInstances(c),
			count: uint32(c.Buffer().Count()),
		})
	}

	nextTexture, err := rs.gpu.surface.GetCurrentTexture()
	if err != nil {
		// Swapchain hiccup (resize mid-flight); drop the frame.
		return
	}
	textureView, err := nextTexture.CreateView(nil)
	if err != nil {
		return
	}
	defer textureView.Release()

	encoder, err := rs.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		panic(err)
	}
	defer encoder.Release()

	clear := wgpu.Color{R: 0.93, G: 0.95, B: 0.97, A: 1.0}
	if controller.DarkTheme() {
		clear = wgpu.Color{R: 0.02, G: 0.03, B: 0.08, A: 1.0}
	}

	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       textureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
	})
	defer renderPass.Release()

	renderPass.SetPipeline(rs.pipeline)
	renderPass.SetBindGroup(0, rs.cameraBindGroup, nil)

	for _, d := range draws {
		renderPass.SetVertexBuffer(0, d.mesh.vertexBuffer, 0, wgpu.WholeSize)
		renderPass.SetVertexBuffer(1, d.gpu.instanceBuffer, 0, wgpu.WholeSize)
		renderPass.SetIndexBuffer(d.mesh.indexBuffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
		renderPass.DrawIndexed(d.mesh.indexCount, d.count, 0, 0, 0)
	}

	if err := renderPass.End(); err != nil {
		panic(err)
	}

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		panic(err)
	}
	defer cmdBuffer.Release()

	rs.gpu.queue.Submit(cmdBuffer)
	rs.gpu.surface.Present()
}

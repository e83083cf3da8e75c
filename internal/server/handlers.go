package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"runtime/debug"

	"github.com/ironsheep/pixel-profile-mcp/internal/annotation"
	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
	"github.com/ironsheep/pixel-profile-mcp/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_detect_corners").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errUnknownTool is returned by executeTool for a name it does not serve.
var errUnknownTool = errors.New("unknown tool")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Malformed arguments return -32602; any other tool failure returns -32000.
// Detections that find nothing are successful responses with count 0.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.runTool(params.Name, func() (interface{}, error) {
		return s.executeTool(params.Name, params.Arguments)
	})
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.Is(err, errUnknownTool) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		s.logger.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// runTool calls fn and turns a panic into an error, so one bad call fails
// with -32000 instead of taking the server down.
func (s *Server) runTool(name string, fn func() (interface{}, error)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panicked", "tool", name, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("tool %s failed: %v", name, r)
		}
	}()
	return fn()
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for omitted parameters
//  3. Loads images and pixel buffers from cache as needed
//  4. Calls the appropriate imaging/detection/annotation function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_unload":
		return s.handleImageUnload(args)

	// Region and Color Operations
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)

	// Profiles and Detection
	case "image_sample_line":
		return s.handleImageSampleLine(args)
	case "image_detect_transitions":
		return s.handleImageDetectTransitions(args)
	case "image_detect_corners":
		return s.handleImageDetectCorners(args)

	// Measurement Operations
	case "image_measure_line":
		return s.handleImageMeasureLine(args)
	case "image_measure_rectangle":
		return s.handleImageMeasureRectangle(args)
	case "image_region_stats":
		return s.handleImageRegionStats(args)

	// Rendering
	case "image_profile_plot":
		return s.handleImageProfilePlot(args)
	case "image_annotate":
		return s.handleImageAnnotate(args)

	// Annotation Objects
	case "annotation_add_line":
		return s.handleAnnotationAddLine(args)
	case "annotation_add_rectangle":
		return s.handleAnnotationAddRectangle(args)
	case "annotation_list":
		return s.handleAnnotationList(args)
	case "annotation_get":
		return s.handleAnnotationGet(args)
	case "annotation_rename":
		return s.handleAnnotationRename(args)
	case "annotation_remove":
		return s.handleAnnotationRemove(args)
	case "annotation_clear":
		return s.handleAnnotationClear(args)

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Shared argument shapes ===

type regionArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r regionArgs) rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// regionOrBounds returns the requested region, or the whole image when the
// caller did not name one.
func regionOrBounds(r *regionArgs, bounds image.Rectangle) image.Rectangle {
	if r == nil {
		return bounds
	}
	return r.rect()
}

type lineArgs struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (l lineArgs) points() (start, end detection.Point) {
	return detection.Pt(l.X1, l.Y1), detection.Pt(l.X2, l.Y2)
}

type rectangleArgs struct {
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

func (r rectangleArgs) spec() imaging.RectangleSpec {
	return imaging.RectangleSpec{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height, Rotation: r.Rotation}
}

// cornerParamArgs overrides the configured corner parameters field by field.
// Explicit out-of-range values are passed through so the backend reports
// them as a diagnostic.
type cornerParamArgs struct {
	MinDistance  *float64 `json:"min_distance"`
	QualityLevel *float64 `json:"quality_level"`
	BlockSize    *int     `json:"block_size"`
	MaxCorners   *int     `json:"max_corners"`
}

func (a cornerParamArgs) apply(p detection.CornerParams) detection.CornerParams {
	if a.MinDistance != nil {
		p.MinDistance = *a.MinDistance
	}
	if a.QualityLevel != nil {
		p.QualityLevel = *a.QualityLevel
	}
	if a.BlockSize != nil {
		p.BlockSize = *a.BlockSize
	}
	if a.MaxCorners != nil {
		p.MaxCorners = *a.MaxCorners
	}
	return p
}

// transitionParamArgs overrides the configured transition parameters.
type transitionParamArgs struct {
	Threshold  *float64 `json:"threshold"`
	WindowSize *int     `json:"window_size"`
}

func (a transitionParamArgs) apply(p detection.TransitionParams) (detection.TransitionParams, error) {
	if a.Threshold != nil {
		p.Threshold = *a.Threshold
	}
	if a.WindowSize != nil {
		p.WindowSize = *a.WindowSize
	}
	return p, p.Validate()
}

// === Detection plumbing ===

// detectCorners runs the configured backend on region of the image at path
// and keeps the strongest MaxCorners. Results are memoised per image version.
func (s *Server) detectCorners(path string, region image.Rectangle, p detection.CornerParams) (detection.CornersResult, error) {
	buf, version, err := s.cache.Buffer(path)
	if err != nil {
		return detection.CornersResult{}, err
	}

	key := detection.CornerKey{
		Version: version,
		Backend: s.backend.Name(),
		Rule:    s.sampler.Rule,
		Region:  region,
		Params:  p,
	}
	return s.results.Corners(key, func() detection.CornersResult {
		res := s.backend.DetectCorners(buf, region, p)
		res.Corners = detection.LimitCorners(res.Corners, p.MaxCorners)
		res.Count = len(res.Corners)
		return res
	}), nil
}

// detectTransitions samples the line start..end on the image at path and
// detects transitions on it. Results are memoised per image version.
func (s *Server) detectTransitions(path string, start, end detection.Point, p detection.TransitionParams) (detection.TransitionsResult, error) {
	buf, version, err := s.cache.Buffer(path)
	if err != nil {
		return detection.TransitionsResult{}, err
	}

	key := detection.TransitionKey{
		Version: version,
		Rule:    s.sampler.Rule,
		Start:   start,
		End:     end,
		Params:  p,
	}
	return s.results.Transitions(key, func() detection.TransitionsResult {
		_, res := detection.Profile(buf, start, end, s.sampler, p,
			detection.WithClassification(s.cfg.TransitionClassification()),
			detection.WithTransitionLogger(s.logger))
		return res
	}), nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	s.cache.Evict(a.Path)
	return map[string]interface{}{"unloaded": a.Path}, nil
}

// === Region and Color Handlers ===

type imageCropArgs struct {
	Path string `json:"path"`
	regionArgs
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.rect(), a.Scale)
}

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

// === Profile and Detection Handlers ===

type imageLineArgs struct {
	Path string `json:"path"`
	lineArgs
}

// SampleLineResult is the intensity profile along a line.
type SampleLineResult struct {
	Start     detection.Point `json:"start"`
	End       detection.Point `json:"end"`
	Rule      string          `json:"extract_rule"`
	Samples   int             `json:"samples"`
	Positions []float64       `json:"positions"`
	Values    []float64       `json:"values"`
	Stats     imaging.Stats   `json:"stats"`
}

func (s *Server) handleImageSampleLine(args json.RawMessage) (interface{}, error) {
	var a imageLineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	buf, _, err := s.cache.Buffer(a.Path)
	if err != nil {
		return nil, err
	}

	start, end := a.points()
	sample := s.sampler.SampleAlongLine(buf, start, end)
	return &SampleLineResult{
		Start:     start,
		End:       end,
		Rule:      s.sampler.Rule.String(),
		Samples:   sample.Len(),
		Positions: nonNil(sample.Positions),
		Values:    nonNil(sample.Values),
		Stats:     imaging.ProfileStats(sample),
	}, nil
}

type imageDetectTransitionsArgs struct {
	Path string `json:"path"`
	lineArgs
	transitionParamArgs
}

func (s *Server) handleImageDetectTransitions(args json.RawMessage) (interface{}, error) {
	var a imageDetectTransitionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := a.apply(s.cfg.Transition)
	if err != nil {
		return nil, err
	}
	start, end := a.points()
	return s.detectTransitions(a.Path, start, end, p)
}

type imageDetectCornersArgs struct {
	Path   string      `json:"path"`
	Region *regionArgs `json:"region"`
	cornerParamArgs
}

func (s *Server) handleImageDetectCorners(args json.RawMessage) (interface{}, error) {
	var a imageDetectCornersArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.detectCorners(a.Path, regionOrBounds(a.Region, img.Bounds()), a.apply(s.cfg.Corner))
}

// === Measurement Handlers ===

func (s *Server) handleImageMeasureLine(args json.RawMessage) (interface{}, error) {
	var a imageLineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	start, end := a.points()
	return imaging.MeasureLine(img, start, end)
}

type imageRectangleArgs struct {
	Path string `json:"path"`
	rectangleArgs
}

func (s *Server) handleImageMeasureRectangle(args json.RawMessage) (interface{}, error) {
	var a imageRectangleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.MeasureRectangle(img, a.spec())
}

type imageRegionStatsArgs struct {
	Path   string      `json:"path"`
	Region *regionArgs `json:"region"`
}

// RegionStatsResult holds the intensity statistics of a region.
type RegionStatsResult struct {
	Region regionArgs    `json:"region"`
	Rule   string        `json:"extract_rule"`
	Stats  imaging.Stats `json:"stats"`
}

func (s *Server) handleImageRegionStats(args json.RawMessage) (interface{}, error) {
	var a imageRegionStatsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	buf, _, err := s.cache.Buffer(a.Path)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, buf.Width, buf.Height)
	r := imaging.ClampRegion(bounds, regionOrBounds(a.Region, bounds))
	grid := s.sampler.ToGridRegion(buf, r)
	if grid == nil {
		return nil, fmt.Errorf("region does not overlap image bounds %v", bounds)
	}
	return &RegionStatsResult{
		Region: regionArgs{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		Rule:   s.sampler.Rule.String(),
		Stats:  imaging.RegionStats(grid),
	}, nil
}

// === Rendering Handlers ===

type imageProfilePlotArgs struct {
	Path string `json:"path"`
	lineArgs
	transitionParamArgs
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	ShowTransitions bool `json:"show_transitions"`
}

func (s *Server) handleImageProfilePlot(args json.RawMessage) (interface{}, error) {
	var a imageProfilePlotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	buf, _, err := s.cache.Buffer(a.Path)
	if err != nil {
		return nil, err
	}

	start, end := a.points()
	sample := s.sampler.SampleAlongLine(buf, start, end)
	if sample.Len() == 0 {
		return nil, fmt.Errorf("line cannot be sampled: length must be between 1e-6 and %d pixels on this image", detection.MaxSamples(buf))
	}

	var transitions []detection.TransitionPoint
	if a.ShowTransitions {
		p, err := a.apply(s.cfg.Transition)
		if err != nil {
			return nil, err
		}
		res, err := s.detectTransitions(a.Path, start, end, p)
		if err != nil {
			return nil, err
		}
		transitions = res.Transitions
	}
	return imaging.ProfilePlot(sample, transitions, a.Width, a.Height)
}

type labeledLineArgs struct {
	lineArgs
	Label string `json:"label"`
}

type labeledRectangleArgs struct {
	rectangleArgs
	Label string `json:"label"`
}

type imageAnnotateArgs struct {
	Path               string                 `json:"path"`
	Lines              []labeledLineArgs      `json:"lines"`
	Rectangles         []labeledRectangleArgs `json:"rectangles"`
	IncludeAnnotations bool                   `json:"include_annotations"`
	GridSpacing        int                    `json:"grid_spacing"`
}

func (s *Server) handleImageAnnotate(args json.RawMessage) (interface{}, error) {
	var a imageAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var o imaging.Overlay
	o.GridSpacing = a.GridSpacing
	for _, l := range a.Lines {
		start, end := l.points()
		o.Lines = append(o.Lines, imaging.LineShape{Start: start, End: end, Label: l.Label})
	}
	for _, r := range a.Rectangles {
		o.Rectangles = append(o.Rectangles, imaging.RectangleShape{Rect: r.spec(), Label: r.Label})
	}

	if a.IncludeAnnotations {
		for _, obj := range s.objects.List(a.Path) {
			report, err := s.report(obj)
			if err != nil {
				return nil, err
			}
			report.addTo(&o)
		}
	}
	return imaging.Annotate(img, o)
}

// === Annotation Handlers ===

// AnnotationReport is an annotation object with its geometry measured and,
// for detection purposes, the detector output inside it.
type AnnotationReport struct {
	annotation.Object
	Line        *imaging.LineMeasurement      `json:"line,omitempty"`
	Rectangle   *imaging.RectangleMeasurement `json:"rectangle,omitempty"`
	Transitions *detection.TransitionsResult  `json:"transitions,omitempty"`
	Corners     *detection.CornersResult      `json:"corners,omitempty"`
}

// report measures obj and runs the detector its purpose asks for. Corner
// detection uses the pixel bounds of the unrotated rectangle.
func (s *Server) report(obj annotation.Object) (*AnnotationReport, error) {
	img, err := s.cache.Load(obj.Path)
	if err != nil {
		return nil, err
	}

	r := &AnnotationReport{Object: obj}
	switch obj.Kind {
	case annotation.KindLine:
		if r.Line, err = imaging.MeasureLine(img, obj.Start, obj.End); err != nil {
			return nil, err
		}
		if obj.Purpose == annotation.PurposePointDetection {
			res, err := s.detectTransitions(obj.Path, obj.Start, obj.End, s.cfg.Transition)
			if err != nil {
				return nil, err
			}
			r.Transitions = &res
		}
	case annotation.KindRectangle:
		if r.Rectangle, err = imaging.MeasureRectangle(img, *obj.Rect); err != nil {
			return nil, err
		}
		if obj.Purpose == annotation.PurposeCornerDetection {
			res, err := s.detectCorners(obj.Path, obj.Rect.Bounds(), s.cfg.Corner)
			if err != nil {
				return nil, err
			}
			r.Corners = &res
		}
	}
	return r, nil
}

// addTo draws the object and its detections on o.
func (r *AnnotationReport) addTo(o *imaging.Overlay) {
	switch r.Kind {
	case annotation.KindLine:
		o.Lines = append(o.Lines, imaging.LineShape{Start: r.Start, End: r.End, Label: r.Name})
	case annotation.KindRectangle:
		o.Rectangles = append(o.Rectangles, imaging.RectangleShape{Rect: *r.Object.Rect, Label: r.Name})
	}
	if r.Transitions != nil {
		o.Transitions = append(o.Transitions, r.Transitions.Transitions...)
	}
	if r.Corners != nil {
		o.Corners = append(o.Corners, r.Corners.Corners...)
	}
}

type annotationAddArgs struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

func (s *Server) handleAnnotationAddLine(args json.RawMessage) (interface{}, error) {
	var a struct {
		annotationAddArgs
		lineArgs
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	purpose, err := annotation.ParsePurpose(a.Purpose)
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.Load(a.Path); err != nil {
		return nil, err
	}

	start, end := a.points()
	obj, err := s.objects.AddLine(a.Path, a.Name, purpose, start, end)
	if err != nil {
		return nil, err
	}
	return s.report(obj)
}

func (s *Server) handleAnnotationAddRectangle(args json.RawMessage) (interface{}, error) {
	var a struct {
		annotationAddArgs
		rectangleArgs
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	purpose, err := annotation.ParsePurpose(a.Purpose)
	if err != nil {
		return nil, err
	}
	if _, err := s.cache.Load(a.Path); err != nil {
		return nil, err
	}

	obj, err := s.objects.AddRectangle(a.Path, a.Name, purpose, a.spec())
	if err != nil {
		return nil, err
	}
	return s.report(obj)
}

// AnnotationList is the result of annotation_list.
type AnnotationList struct {
	Objects []annotation.Object `json:"objects"`
	Count   int                 `json:"count"`
}

func (s *Server) handleAnnotationList(args json.RawMessage) (interface{}, error) {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	objs := s.objects.List(a.Path)
	return &AnnotationList{Objects: objs, Count: len(objs)}, nil
}

type annotationRefArgs struct {
	// Ref is an object ID or name.
	Ref string `json:"ref"`
}

func (s *Server) handleAnnotationGet(args json.RawMessage) (interface{}, error) {
	var a annotationRefArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	obj, err := s.objects.Get(a.Ref)
	if err != nil {
		return nil, err
	}
	return s.report(obj)
}

func (s *Server) handleAnnotationRename(args json.RawMessage) (interface{}, error) {
	var a struct {
		annotationRefArgs
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.objects.Rename(a.Ref, a.Name)
}

func (s *Server) handleAnnotationRemove(args json.RawMessage) (interface{}, error) {
	var a annotationRefArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := s.objects.Remove(a.Ref); err != nil {
		return nil, err
	}
	return map[string]interface{}{"removed": a.Ref, "remaining": s.objects.Len()}, nil
}

// handleAnnotationClear removes every stored object and restarts default
// naming at Line1 and Rectangle1.
func (s *Server) handleAnnotationClear(args json.RawMessage) (interface{}, error) {
	var a struct{}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	removed := s.objects.Len()
	s.objects.Clear()
	return map[string]interface{}{"removed": removed}, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/registration"
	"github.com/ironsheep/omr-grader/internal/sheet"
)

// registeredPrefix marks cache handles that hold registered pages rather
// than files on disk.
const registeredPrefix = "registered:"

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "sheet_grade").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed",
			zap.String("tool", params.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.log.Debug("tool completed",
		zap.String("tool", params.Name),
		zap.Duration("elapsed", time.Since(start)),
	)

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

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Page images
	case "image_load":
		return s.handleImageLoad(args)
	case "image_grid_overlay":
		return s.handleImageGridOverlay(args)
	case "zone_crop":
		return s.handleZoneCrop(args)

	// Registration
	case "sheet_register":
		return s.handleSheetRegister(args)

	// Zone scoring
	case "zone_score":
		return s.handleZoneScore(args)
	case "zone_compare":
		return s.handleZoneCompare(args)

	// Page grading
	case "sheet_grade":
		return s.handleSheetGrade(ctx, args)
	case "sheet_grade_batch":
		return s.handleSheetGradeBatch(ctx, args)
	case "sheet_annotate":
		return s.handleSheetAnnotate(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// load returns a page by path or registered handle.
func (s *Server) load(path string) (image.Image, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	return s.cache.Load(path)
}

// storeRegistered caches a registered page and returns its handle.
func (s *Server) storeRegistered(img image.Image) string {
	handle := registeredPrefix + uuid.NewString()
	s.cache.Put(handle, img)
	return handle
}

// saveIfRequested writes img to output when output is set.
func saveIfRequested(img image.Image, output string) error {
	if output == "" {
		return nil
	}
	return imaging.Save(img, output)
}

// === Page Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageGridOverlayArgs struct {
	Path            string  `json:"path"`
	GridSpacing     int     `json:"grid_spacing"`
	ShowCoordinates bool    `json:"show_coordinates"`
	GridColor       string  `json:"grid_color"`
	Scale           float64 `json:"scale"`
}

func (s *Server) handleImageGridOverlay(args json.RawMessage) (interface{}, error) {
	var a imageGridOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridSpacing == 0 {
		a.GridSpacing = 50
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := imaging.GridOverlay(img, a.GridSpacing, a.ShowCoordinates, a.GridColor)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(out, a.Scale)
}

type zoneCropArgs struct {
	Path   string  `json:"path"`
	Left   int     `json:"left"`
	Top    int     `json:"top"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleZoneCrop(args json.RawMessage) (interface{}, error) {
	var a zoneCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, image.Rect(a.Left, a.Top, a.Left+a.Width, a.Top+a.Height), a.Scale)
}

// === Registration Handlers ===

type sheetRegisterArgs struct {
	Template  string `json:"template"`
	Candidate string `json:"candidate"`
	Output    string `json:"output"`
}

// SheetRegisterResult describes a registration run. Handle names the
// registered page in the cache and is empty when alignment failed.
type SheetRegisterResult struct {
	Aligned    bool                     `json:"aligned"`
	Handle     string                   `json:"handle,omitempty"`
	Strategy   string                   `json:"strategy,omitempty"`
	Homography *registration.Homography `json:"homography,omitempty"`
	Attempts   []registration.Attempt   `json:"attempts"`
	Error      string                   `json:"error,omitempty"`
}

func (s *Server) handleSheetRegister(args json.RawMessage) (interface{}, error) {
	var a sheetRegisterArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	template, err := s.load(a.Template)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	candidate, err := s.load(a.Candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	res, err := s.registrar.Register(template, candidate)
	if err != nil {
		// A page that cannot be aligned is a result, not a tool failure.
		if errors.Is(err, registration.ErrAlignmentFailed) {
			return &SheetRegisterResult{
				Attempts: registration.AttemptErrors(err),
				Error:    err.Error(),
			}, nil
		}
		return nil, err
	}

	if err := saveIfRequested(res.Image, a.Output); err != nil {
		return nil, err
	}
	h := res.Homography
	return &SheetRegisterResult{
		Aligned:    true,
		Handle:     s.storeRegistered(res.Image),
		Strategy:   res.Strategy.String(),
		Homography: &h,
		Attempts:   res.Attempts,
	}, nil
}

// === Zone Scoring Handlers ===

type zoneScoreArgs struct {
	Path string   `json:"path"`
	Zone omr.Zone `json:"zone"`
	Mode string   `json:"mode"`
}

// ZoneScoreResult is the reading of a single zone.
type ZoneScoreResult struct {
	Zone     omr.Zone  `json:"zone"`
	Mode     string    `json:"mode"`
	Selected int       `json:"selected"`
	Label    string    `json:"label"`
	Scores   []float64 `json:"scores"`
}

func (s *Server) handleZoneScore(args json.RawMessage) (interface{}, error) {
	var a zoneScoreArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.Zone.Validate(); err != nil {
		return nil, err
	}
	mode := omr.ModeFor(a.Zone.Options)
	if a.Mode != "" {
		m, err := omr.ParseMode(a.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := s.scorer.Score(imaging.CropZone(img, a.Zone.Rect()), a.Zone.Options, a.Zone.Orientation, mode)
	if err != nil {
		return nil, err
	}
	return &ZoneScoreResult{
		Zone:     a.Zone,
		Mode:     mode.String(),
		Selected: res.Selected,
		Label:    sheet.OptionLabel(res.Selected, a.Zone.Options),
		Scores:   res.Scores,
	}, nil
}

type zoneCompareArgs struct {
	Student string   `json:"student"`
	Key     string   `json:"key"`
	Zone    omr.Zone `json:"zone"`
}

// ZoneCompareResult is the outcome of comparing one zone against the key.
type ZoneCompareResult struct {
	Zone          omr.Zone  `json:"zone"`
	Student       int       `json:"student"`
	Key           int       `json:"key"`
	StudentLabel  string    `json:"student_label"`
	KeyLabel      string    `json:"key_label"`
	Match         bool      `json:"match"`
	StudentScores []float64 `json:"student_scores"`
	KeyScores     []float64 `json:"key_scores"`
}

func (s *Server) handleZoneCompare(args json.RawMessage) (interface{}, error) {
	var a zoneCompareArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.Zone.Validate(); err != nil {
		return nil, err
	}
	student, err := s.load(a.Student)
	if err != nil {
		return nil, fmt.Errorf("student: %w", err)
	}
	key, err := s.load(a.Key)
	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}

	r := a.Zone.Rect()
	cmp, err := s.scorer.Compare(imaging.CropZone(student, r), imaging.CropZone(key, r), a.Zone.Options, a.Zone.Orientation)
	if err != nil {
		return nil, err
	}
	return &ZoneCompareResult{
		Zone:          a.Zone,
		Student:       cmp.Student,
		Key:           cmp.Key,
		StudentLabel:  sheet.OptionLabel(cmp.Student, a.Zone.Options),
		KeyLabel:      sheet.OptionLabel(cmp.Key, a.Zone.Options),
		Match:         cmp.Match,
		StudentScores: cmp.StudentScores,
		KeyScores:     cmp.KeyScores,
	}, nil
}

// === Page Grading Handlers ===

type sheetGradeArgs struct {
	ID       string     `json:"id"`
	Template string     `json:"template"`
	Student  string     `json:"student"`
	Key      string     `json:"key"`
	Zones    []omr.Zone `json:"zones"`
}

// SheetGradeResult is a page report plus the cache handle of the registered
// student page.
type SheetGradeResult struct {
	*sheet.PageReport
	Handle string                `json:"handle,omitempty"`
	Counts map[sheet.Outcome]int `json:"counts"`
}

func (s *Server) pageRequest(a sheetGradeArgs) (sheet.PageRequest, error) {
	req := sheet.PageRequest{ID: a.ID, Zones: a.Zones}
	var err error
	if req.Template, err = s.load(a.Template); err != nil {
		return req, fmt.Errorf("template: %w", err)
	}
	if req.Student, err = s.load(a.Student); err != nil {
		return req, fmt.Errorf("student: %w", err)
	}
	if a.Key != "" {
		if req.Key, err = s.load(a.Key); err != nil {
			return req, fmt.Errorf("key: %w", err)
		}
	}
	return req, nil
}

func (s *Server) gradeResult(report *sheet.PageReport) *SheetGradeResult {
	s.mu.Lock()
	s.reports[report.PageID] = report
	s.mu.Unlock()

	out := &SheetGradeResult{PageReport: report, Counts: report.Counts()}
	if report.Registered != nil {
		out.Handle = s.storeRegistered(report.Registered)
	}
	return out
}

func (s *Server) handleSheetGrade(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sheetGradeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	req, err := s.pageRequest(a)
	if err != nil {
		return nil, err
	}
	report, err := s.grader.GradePage(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.gradeResult(report), nil
}

type sheetGradeBatchArgs struct {
	Template string     `json:"template"`
	Key      string     `json:"key"`
	Zones    []omr.Zone `json:"zones"`
	Students []string   `json:"students"`
}

func (s *Server) handleSheetGradeBatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sheetGradeBatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Students) == 0 {
		return nil, errors.New("students is required")
	}

	reqs := make([]sheet.PageRequest, 0, len(a.Students))
	for _, student := range a.Students {
		req, err := s.pageRequest(sheetGradeArgs{
			ID:       student,
			Template: a.Template,
			Student:  student,
			Key:      a.Key,
			Zones:    a.Zones,
		})
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	reports, err := s.grader.GradeBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	results := make([]*SheetGradeResult, 0, len(reports))
	for _, r := range reports {
		results = append(results, s.gradeResult(r))
	}
	return map[string]interface{}{"pages": results}, nil
}

type sheetAnnotateArgs struct {
	PageID string  `json:"page_id"`
	Scale  float64 `json:"scale"`
	Output string  `json:"output"`
}

func (s *Server) handleSheetAnnotate(args json.RawMessage) (interface{}, error) {
	var a sheetAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	s.mu.Lock()
	report, ok := s.reports[a.PageID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no graded page with id %q", a.PageID)
	}

	img, err := report.Annotate()
	if err != nil {
		return nil, err
	}
	if err := saveIfRequested(img, a.Output); err != nil {
		return nil, err
	}
	return imaging.EncodePNG(img, a.Scale)
}

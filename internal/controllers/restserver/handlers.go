package restserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/chrissnell/brat/internal/constants"
	"github.com/chrissnell/brat/internal/pipeline"
	"github.com/chrissnell/brat/internal/store"
	"github.com/chrissnell/brat/internal/types"
	"github.com/chrissnell/brat/pkg/hydro"
	"github.com/chrissnell/brat/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// SegmentResponse is a segment with its dam statistics, when a run produced
// them.
type SegmentResponse struct {
	types.Segment
	Dams *types.DamStats `json:"dams,omitempty"`
}

// SegmentList is a page of segments.
type SegmentList struct {
	Total    int               `json:"total"`
	Offset   int               `json:"offset"`
	Segments []SegmentResponse `json:"segments"`
}

// RegionResponse describes one regional curve.
type RegionResponse struct {
	Region   int    `json:"region"`
	Name     string `json:"name"`
	Baseflow string `json:"baseflow"`
	Peakflow string `json:"peakflow"`
}

const defaultPageSize = 500

func (h *Handlers) selector(r *http.Request, ids []int64) (store.Selector, error) {
	cols, err := store.ResolveColumns(r.Context(), h.controller.store)
	if err != nil {
		return store.Selector{}, err
	}
	return store.Selector{IDs: ids, Columns: cols}, nil
}

func (h *Handlers) storeError(w http.ResponseWriter, req *http.Request, err error) {
	h.controller.logger.Errorw("feature store request failed", "path", req.URL.Path, "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, types.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	h.formatter.WriteError(w, req, status, "feature store unavailable")
}

// GetSegments lists segments, optionally filtered by label. Query parameters:
// risk, limitation, opportunity, management, limit, offset.
func (h *Handlers) GetSegments(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil || limit <= 0 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid offset")
		return
	}

	sel, err := h.selector(req, nil)
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	segments, err := h.controller.store.ReadSegments(req.Context(), sel)
	if err != nil {
		h.storeError(w, req, err)
		return
	}

	var matched []types.Segment
	for _, seg := range segments {
		if matches(seg, q.Get("risk"), q.Get("limitation"), q.Get("opportunity"), q.Get("management")) {
			matched = append(matched, seg)
		}
	}

	page := SegmentList{Total: len(matched), Offset: offset, Segments: []SegmentResponse{}}
	if offset < len(matched) {
		matched = matched[offset:min(offset+limit, len(matched))]
		stats, err := h.damStats(req, matched)
		if err != nil {
			h.storeError(w, req, err)
			return
		}
		for _, seg := range matched {
			page.Segments = append(page.Segments, SegmentResponse{Segment: seg, Dams: stats[seg.ID]})
		}
	}

	h.formatter.WriteResponse(w, req, page, nil)
}

func (h *Handlers) damStats(req *http.Request, segments []types.Segment) (map[int64]*types.DamStats, error) {
	ids := make([]int64, len(segments))
	for i, seg := range segments {
		ids[i] = seg.ID
	}
	stats, err := h.controller.store.ReadDamStats(req.Context(), ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*types.DamStats, len(stats))
	for i := range stats {
		byID[stats[i].SegmentID] = &stats[i]
	}
	return byID, nil
}

func matches(seg types.Segment, risk, limitation, opportunity, management string) bool {
	return (risk == "" || string(seg.Risk) == risk) &&
		(limitation == "" || string(seg.Limitation) == limitation) &&
		(opportunity == "" || string(seg.Opportunity) == opportunity) &&
		(management == "" || string(seg.Management) == management)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// GetSegment returns one segment by ReachID.
func (h *Handlers) GetSegment(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid reach id")
		return
	}

	sel, err := h.selector(req, []int64{id})
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	segments, err := h.controller.store.ReadSegments(req.Context(), sel)
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	if len(segments) == 0 {
		h.formatter.WriteError(w, req, http.StatusNotFound, "reach not found")
		return
	}

	stats, err := h.damStats(req, segments)
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	h.formatter.WriteResponse(w, req, SegmentResponse{Segment: segments[0], Dams: stats[id]}, nil)
}

// GetSummary returns statistics over the whole network as currently stored.
func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	sel, err := h.selector(req, nil)
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	segments, err := h.controller.store.ReadSegments(req.Context(), sel)
	if err != nil {
		h.storeError(w, req, err)
		return
	}
	stats, err := h.controller.store.ReadDamStats(req.Context(), nil)
	if err != nil {
		h.storeError(w, req, err)
		return
	}

	h.formatter.WriteResponse(w, req, pipeline.Describe(segments, stats), nil)
}

// GetRegions lists the regional curves, the generic fallback first.
func (h *Handlers) GetRegions(w http.ResponseWriter, req *http.Request) {
	codes := append([]int{hydro.DefaultRegion}, hydro.Regions()...)
	regions := make([]RegionResponse, 0, len(codes))
	for _, code := range codes {
		c, _ := hydro.Lookup(code)
		regions = append(regions, RegionResponse{
			Region:   code,
			Name:     c.Name,
			Baseflow: c.BaseflowText,
			Peakflow: c.PeakflowText,
		})
	}
	h.formatter.WriteResponse(w, req, regions, nil)
}

// Health reports the server version.
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, map[string]string{
		"status":  "ok",
		"version": constants.Version,
	}, nil)
}

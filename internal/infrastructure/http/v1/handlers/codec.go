package handlers

import (
	"github.com/gin-gonic/gin"

	"sheetbridge/internal/core/apperror"
	"sheetbridge/internal/domain/pathcodec"
	"sheetbridge/internal/domain/table"
	"sheetbridge/internal/domain/transform"
	"sheetbridge/internal/domain/validation"
	"sheetbridge/internal/infrastructure/http/v1/dto"
)

// CodecHandler serves pack, unpack, validate and enrich.
type CodecHandler struct {
	*BaseHandler
	engine *validation.Engine
}

// NewCodecHandler creates a codec handler backed by engine.
func NewCodecHandler(base *BaseHandler, engine *validation.Engine) *CodecHandler {
	return &CodecHandler{BaseHandler: base, engine: engine}
}

func (h *CodecHandler) levels() int { return h.engine.Options().Levels }

// Pack handles POST /pack
func (h *CodecHandler) Pack(c *gin.Context) {
	var req dto.PackRequest
	if !h.BindJSON(c, &req) {
		return
	}
	levels := req.Levels
	if levels == 0 {
		levels = h.levels()
	}

	wb := table.NewWorkbook()
	for _, s := range req.Sheets {
		records := make([]*pathcodec.Object, 0, len(s.Records))
		for i, r := range s.Records {
			if r == nil {
				h.Error(c, apperror.NewInvalidInput("records must be JSON objects").
					WithDetail("sheet", s.Name).
					WithDetail("index", i))
				return
			}
			records = append(records, r)
		}
		t, err := table.PackObjects(records, levels)
		if err != nil {
			h.Error(c, err)
			return
		}
		wb.Set(s.Name, t)
	}

	h.ETag(c, wb.Fingerprint())
	h.OK(c, dto.FromDomain(wb))
}

// Unpack handles POST /unpack
func (h *CodecHandler) Unpack(c *gin.Context) {
	var req dto.UnpackRequest
	if !h.BindJSON(c, &req) {
		return
	}
	wb, err := req.ToDomain(h.levels())
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.StripHelpers {
		wb = transform.StripHelpers(wb, h.engine.Options().HelperPrefix)
	}

	resp := dto.UnpackResponse{Sheets: make([]dto.UnpackedSheet, 0, wb.Len())}
	for _, name := range wb.Names() {
		t, _ := wb.Get(name)
		objs, err := table.Unpack(t)
		if err != nil {
			h.Error(c, err)
			return
		}
		resp.Sheets = append(resp.Sheets, dto.UnpackedSheet{Name: name, Data: table.Shape(objs)})
	}
	h.OK(c, resp)
}

// Validate handles POST /validate
// Fail-mode findings answer 422 with the report under details.report.
func (h *CodecHandler) Validate(c *gin.Context) {
	var req dto.Workbook
	if !h.BindJSON(c, &req) {
		return
	}
	wb, err := req.ToDomain(h.levels())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.ETag(c, wb.Fingerprint())
	report, err := h.engine.Validate(c.Request.Context(), wb)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ValidateResponse{Clean: report.Clean(), Report: report})
}

// Enrich handles POST /enrich
func (h *CodecHandler) Enrich(c *gin.Context) {
	var req dto.Workbook
	if !h.BindJSON(c, &req) {
		return
	}
	wb, err := req.ToDomain(h.levels())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.ETag(c, wb.Fingerprint())
	out, report, err := h.engine.Enrich(c.Request.Context(), wb)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.EnrichResponse{Workbook: dto.FromDomain(out), Report: report})
}

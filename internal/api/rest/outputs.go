package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenMTS/internal/machine"
	"github.com/gin-gonic/gin"
)

type noiseRequest struct {
	UncorrelatedDBm *float64 `json:"ucs_dbm"`
	CorrelatedDBm   *float64 `json:"cs_dbm"`
}

type cwRequest struct {
	UncorrelatedDBm *float64 `json:"ucs_dbm"`
	UncorrelatedMHz *float64 `json:"ucs_mhz"`
	CorrelatedDBm   *float64 `json:"cs_dbm"`
	CorrelatedMHz   *float64 `json:"cs_mhz"`
}

type frequencyRequest struct {
	MHz *float64 `json:"mhz" binding:"required"`
}

// pathParam reads the :path segment (ucs or cs).
func pathParam(c *gin.Context) (machine.Path, bool) {
	path, ok := machine.ParsePath(c.Param("path"))
	if !ok {
		badRequest(c, "Invalid path", "path must be ucs or cs")
	}
	return path, ok
}

// disableTargets reads ?path=ucs|cs|both, both by default.
func disableTargets(c *gin.Context) (ucs, cs, ok bool) {
	switch c.DefaultQuery("path", "both") {
	case "both":
		return true, true, true
	case string(machine.PathUncorrelated):
		return true, false, true
	case string(machine.PathCorrelated):
		return false, true, true
	}
	badRequest(c, "Invalid path", "path must be ucs, cs or both")
	return false, false, false
}

// POST /api/v1/outputs/:output/noise
func (s *Server) setNoise(c *gin.Context) {
	var req noiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if req.UncorrelatedDBm == nil && req.CorrelatedDBm == nil {
		badRequest(c, "Invalid request body", "ucs_dbm or cs_dbm is required")
		return
	}

	output := c.Param("output")
	if err := generator(c).SetNoise(c.Request.Context(), output, req.UncorrelatedDBm, req.CorrelatedDBm); err != nil {
		s.respondError(c, "Failed to set noise", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":  output,
		"ucs_dbm": req.UncorrelatedDBm,
		"cs_dbm":  req.CorrelatedDBm,
	})
}

// GET /api/v1/outputs/:output/noise/:path
func (s *Server) getNoise(c *gin.Context) {
	s.getPower(c, machine.SignalNoise)
}

// GET /api/v1/outputs/:output/cw/:path
func (s *Server) getCW(c *gin.Context) {
	s.getPower(c, machine.SignalCW)
}

func (s *Server) getPower(c *gin.Context, signal machine.Signal) {
	path, ok := pathParam(c)
	if !ok {
		return
	}

	output := c.Param("output")
	power, err := generator(c).GetPower(c.Request.Context(), output, signal, path)
	if err != nil {
		s.respondError(c, "Failed to read power", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":    output,
		"signal":    signal,
		"path":      path,
		"power_dbm": power,
	})
}

// DELETE /api/v1/outputs/:output/noise
func (s *Server) disableNoise(c *gin.Context) {
	ucs, cs, ok := disableTargets(c)
	if !ok {
		return
	}
	if err := generator(c).DisableNoise(c.Request.Context(), c.Param("output"), ucs, cs); err != nil {
		s.respondError(c, "Failed to disable noise", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/outputs/:output/cw
func (s *Server) setCW(c *gin.Context) {
	var req cwRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	if req.UncorrelatedDBm == nil && req.CorrelatedDBm == nil {
		badRequest(c, "Invalid request body", "ucs_dbm or cs_dbm is required")
		return
	}

	output := c.Param("output")
	err := generator(c).SetCW(c.Request.Context(), output, machine.CWRequest{
		UncorrelatedDBm: req.UncorrelatedDBm,
		UncorrelatedMHz: req.UncorrelatedMHz,
		CorrelatedDBm:   req.CorrelatedDBm,
		CorrelatedMHz:   req.CorrelatedMHz,
	})
	if err != nil {
		s.respondError(c, "Failed to set CW", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":  output,
		"ucs_dbm": req.UncorrelatedDBm,
		"ucs_mhz": req.UncorrelatedMHz,
		"cs_dbm":  req.CorrelatedDBm,
		"cs_mhz":  req.CorrelatedMHz,
	})
}

// DELETE /api/v1/outputs/:output/cw
func (s *Server) disableCW(c *gin.Context) {
	ucs, cs, ok := disableTargets(c)
	if !ok {
		return
	}
	if err := generator(c).DisableCW(c.Request.Context(), c.Param("output"), ucs, cs); err != nil {
		s.respondError(c, "Failed to disable CW", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/v1/outputs/:output/frequency/:path
func (s *Server) setFrequency(c *gin.Context) {
	path, ok := pathParam(c)
	if !ok {
		return
	}

	var req frequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	output := c.Param("output")
	if err := generator(c).SetFrequency(c.Request.Context(), output, path, *req.MHz); err != nil {
		s.respondError(c, "Failed to set frequency", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":        output,
		"path":          path,
		"frequency_mhz": *req.MHz,
	})
}

// GET /api/v1/outputs/:output/frequency/:path
func (s *Server) getFrequency(c *gin.Context) {
	path, ok := pathParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	output := c.Param("output")
	gen := generator(c)

	freq, err := gen.GetFrequency(ctx, output, path)
	if err != nil {
		s.respondError(c, "Failed to read frequency", err)
		return
	}
	locked, err := gen.LockStatus(ctx, output, path)
	if err != nil {
		s.respondError(c, "Failed to read lock status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":        output,
		"path":          path,
		"frequency_mhz": freq,
		"locked":        locked,
	})
}

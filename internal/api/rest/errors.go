package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenMTS/internal/machine"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps generator errors onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, message string, err error) {
	var (
		rangeErr    *types.RangeError
		setpointErr *types.SetpointMismatch
		freqErr     *types.FrequencyMismatch
		verifyErr   *types.VerificationError
		protoErr    *types.ProtocolError
		transErr    *types.TransportError
	)

	status, code := http.StatusInternalServerError, "GENERATOR_500"
	switch {
	case errors.As(err, &rangeErr):
		status, code = http.StatusBadRequest, "RANGE_400"
	case errors.Is(err, types.ErrUnknownOutput), errors.Is(err, types.ErrUnknownModule):
		status, code = http.StatusNotFound, "OUTPUT_404"
	case errors.Is(err, types.ErrSynthUnavailable):
		status, code = http.StatusConflict, "SYNTH_409"
	case errors.Is(err, machine.ErrNotReady):
		status, code = http.StatusServiceUnavailable, "GENERATOR_503"
	case errors.As(err, &setpointErr), errors.As(err, &freqErr), errors.As(err, &verifyErr):
		status, code = http.StatusBadGateway, "HARDWARE_502"
	case errors.As(err, &protoErr), errors.As(err, &transErr):
		status, code = http.StatusBadGateway, "CONTROLLER_502"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(message,
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	_ = c.Error(err)
	c.JSON(status, types.NewErrorResponse(code, message, err.Error()))
}

func badRequest(c *gin.Context, message string, details any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, types.NewErrorResponse("REQUEST_400", message, details))
}

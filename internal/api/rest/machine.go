package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenMTS/internal/machine"
	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/gin-gonic/gin"
)

const generatorKey = "generator"

// requireGenerator injects the orchestrator into the gin context, or answers
// 503 while the system is still starting.
func (s *Server) requireGenerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		gen := s.lm.Generator()
		if gen == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				types.NewErrorResponse("GENERATOR_503", "Generator not started", nil))
			return
		}
		c.Set(generatorKey, gen)
		c.Next()
	}
}

func generator(c *gin.Context) *machine.Orchestrator {
	return c.MustGet(generatorKey).(*machine.Orchestrator)
}

// GET /api/v1/generator/status
func (s *Server) getGeneratorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, generator(c).GetStatus())
}

// GET /api/v1/generator/base-frequency
func (s *Server) getBaseFrequency(c *gin.Context) {
	minMHz, maxMHz := generator(c).BaseFrequencyRange()
	c.JSON(http.StatusOK, gin.H{
		"min_mhz": minMHz,
		"max_mhz": maxMHz,
	})
}

// GET /api/v1/generator/modules
func (s *Server) listModules(c *gin.Context) {
	modules := generator(c).Registry().List(0)

	response := make([]gin.H, 0, len(modules))
	for _, m := range modules {
		response = append(response, gin.H{
			"id":          m.ID,
			"name":        m.Name,
			"number":      m.Number,
			"role":        m.Role.String(),
			"available":   m.Available,
			"bounds":      m.Bounds,
			"synthesizer": m.HasSynthesizer(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"modules": response,
		"count":   len(response),
	})
}

// GET /api/v1/outputs
func (s *Server) listOutputs(c *gin.Context) {
	outputs := generator(c).Outputs()
	c.JSON(http.StatusOK, gin.H{
		"outputs": outputs,
		"count":   len(outputs),
	})
}

// GET /api/v1/outputs/:output/environment
func (s *Server) getEnvironment(c *gin.Context) {
	env, err := generator(c).Environment(c.Request.Context(), c.Param("output"))
	if err != nil {
		s.respondError(c, "Failed to read environment", err)
		return
	}
	c.JSON(http.StatusOK, env)
}

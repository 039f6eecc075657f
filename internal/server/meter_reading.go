package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
)

func (s *Server) LatestReading(c *gin.Context) {
	roomID, ok := pathID(c, "room")
	if !ok {
		return
	}
	c.Set("room_id", roomID)

	reading, err := s.readingSvc.Latest(c.Request.Context(), roomID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reading})
}

func (s *Server) ListReadings(c *gin.Context) {
	var req readingdomain.ListReadingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.RoomID = strings.TrimSpace(req.RoomID)
	period, err := parseOptionalPeriod(req.MonthYear)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.MonthYear = period

	readings, err := s.readingSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": readings})
}

// CorrectReading edits the current readings and returns the recomputed bill.
func (s *Server) CorrectReading(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req readingdomain.CorrectReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.readingSvc.Correct(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

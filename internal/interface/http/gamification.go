package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION ENDPOINTS
// Bare payloads; errors are {"detail": "..."}.
// ══════════════════════════════════════════════════════════════════════════════

const (
	detailNotYetAccessed  = "오늘은 아직 LMS에 접속한 기록이 없어서 출석을 찍을 수 없습니다."
	detailAlreadyChecked  = "이미 오늘 출석 도장을 찍었습니다."
	detailNoHandle        = "solved.ac handle is not configured"
	detailUpdateInProcess = "another update for this user is in progress"
)

// DetailResponse is the error and message body of the gamification API.
type DetailResponse struct {
	Detail string `json:"detail"`
}

func detail(msg string) DetailResponse {
	return DetailResponse{Detail: msg}
}

// GET /api/attendance/status/
func (s *Server) handleAttendanceStatus(c *gin.Context) {
	dto, err := s.deps.AttendanceStatus.Handle(c.Request.Context(), query.AttendanceStatusQuery{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GET /api/me/level/
func (s *Server) handleMyLevel(c *gin.Context) {
	dto, err := s.deps.MyLevel.Handle(c.Request.Context(), query.MyLevelQuery{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GET /api/gamification/today-attendance/
func (s *Server) handleTodayAttendance(c *gin.Context) {
	dto, err := s.deps.TodayAttendance.Handle(c.Request.Context(), query.TodayAttendanceQuery{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// POST /api/gamification/today-attendance/
func (s *Server) handleConfirmAttendance(c *gin.Context) {
	res, err := s.deps.ConfirmAttendance.Handle(c.Request.Context(), command.ConfirmAttendanceCommand{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.AlreadyChecked {
		c.JSON(http.StatusOK, detail(detailAlreadyChecked))
		return
	}
	c.JSON(http.StatusOK, res.Status)
}

// POST /api/gamification/access/
func (s *Server) handleRecordAccess(c *gin.Context) {
	res, err := s.deps.RecordAccess.Handle(c.Request.Context(), command.RecordAccessCommand{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, query.NewTodayAttendanceDTO(res.Access.Date, res.Access))
}

// GET /api/gamification/attendance-map/
func (s *Server) handleAttendanceMap(c *gin.Context) {
	dto, err := s.deps.AttendanceMap.Handle(c.Request.Context(), query.AttendanceMapQuery{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GET /api/student/challenge/
func (s *Server) handleChallenge(c *gin.Context) {
	dto, err := s.deps.Challenge.Handle(c.Request.Context(), query.ChallengeQuery{UserID: userIDFrom(c)})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps a domain error to its HTTP status and detail message.
func statusFor(err error) (int, string) {
	var de *shared.DomainError
	switch {
	case errors.Is(err, shared.ErrNotYetAccessed):
		return http.StatusBadRequest, detailNotYetAccessed
	case errors.Is(err, shared.ErrNoHandleConfigured):
		return http.StatusNotFound, detailNoHandle
	case errors.Is(err, shared.ErrUserLockBusy):
		return http.StatusConflict, detailUpdateInProcess
	case errors.Is(err, shared.ErrSolvedUserNotFound), shared.IsExternalService(err):
		if errors.As(err, &de) {
			return http.StatusServiceUnavailable, de.Message
		}
		return http.StatusServiceUnavailable, "solved.ac is unavailable"
	case shared.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)

	log := logger.FromContext(c.Request.Context())
	fields := []logger.Field{
		logger.UserID(userIDFrom(c)),
		logger.String("path", c.FullPath()),
		logger.Int("status", status),
		logger.Err(err),
	}
	if status >= 500 && status != http.StatusServiceUnavailable {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}

	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "30")
	}
	c.JSON(status, detail(msg))
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// roomError maps a service error onto an HTTP response using the error
// categories; anything uncategorized is a persistence failure.
func roomError(c echo.Context, err error) error {
	var access *services.ForbiddenRoomAccess
	if errors.As(err, &access) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error":    access.Error(),
			"password": access.HasPassword,
		})
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func roomIDParam(c echo.Context) (uint, error) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id64), nil
}

func (h *RoomHandler) CreateRoom(c echo.Context) error {
	user := c.Get("user").(*models.User)
	var req struct {
		Name     string          `json:"name"`
		Type     models.RoomType `json:"type"`
		Password string          `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	room, err := h.roomService.CreateRoom(c.Request().Context(), user.ID, req.Name, req.Type, req.Password)
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// ListRooms returns every room visible to the caller, newest first.
func (h *RoomHandler) ListRooms(c echo.Context) error {
	user := c.Get("user").(*models.User)
	rooms, err := h.roomService.ListVisibleRooms(c.Request().Context(), user.ID)
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

// GetRoom returns the roster of a room the caller belongs to.
func (h *RoomHandler) GetRoom(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	detail, err := h.roomService.GetRoomDetail(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// JoinRoom adds the caller to a room, checking the password on protected
// rooms.
func (h *RoomHandler) JoinRoom(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	membership, err := h.roomService.JoinRoom(c.Request().Context(), roomID, user.ID, req.Password)
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, membership)
}

func (h *RoomHandler) LeaveRoom(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	if err := h.roomService.LeaveRoom(c.Request().Context(), roomID, user.ID); err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "left room"})
}

// UpdateRoom renames or retypes a room; owner only.
func (h *RoomHandler) UpdateRoom(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	var patch services.RoomPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := h.roomService.UpdateRoom(c.Request().Context(), roomID, user.ID, patch); err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "room updated"})
}

// UpdateMember changes another member's admin/ban/mute flags; admin only.
func (h *RoomHandler) UpdateMember(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID, err := roomIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	targetID64, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
	}
	var req struct {
		Admin     *bool      `json:"admin"`
		Banned    *bool      `json:"banned"`
		Mute      *time.Time `json:"mute"`
		ClearMute bool       `json:"clear_mute"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	patch := models.MembershipPatch{
		Admin:     req.Admin,
		Banned:    req.Banned,
		Mute:      req.Mute,
		ClearMute: req.ClearMute,
	}
	if err := h.roomService.UpdateMembership(c.Request().Context(), roomID, user.ID, uint(targetID64), patch); err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "member updated"})
}

// CreateOrGetDM returns the dm room with another user, creating it on first
// use.
func (h *RoomHandler) CreateOrGetDM(c echo.Context) error {
	user := c.Get("user").(*models.User)
	otherID64, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
	}
	room, err := h.roomService.CreateOrGetDM(c.Request().Context(), user.ID, uint(otherID64))
	if err != nil {
		return roomError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]uint{"id": room.ID})
}

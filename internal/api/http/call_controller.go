package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_call/internal/api/http/converter"
	"github.com/immxrtalbeast/axenix_call/internal/service"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// CallController is the booking layer's entry point into the broker.
type CallController struct {
	calls      service.CallInitiator
	rooms      service.RoomInspector
	iceServers []webrtc.ICEServer
	log        *slog.Logger
}

func NewCallController(calls service.CallInitiator, rooms service.RoomInspector, iceServers []webrtc.ICEServer, log *slog.Logger) *CallController {
	if log == nil {
		log = slog.Default()
	}
	return &CallController{calls: calls, rooms: rooms, iceServers: iceServers, log: log}
}

func (c *CallController) InitiateCall(ctx *gin.Context) {
	type request struct {
		InitiatorUserID string `json:"initiatorUserId"`
		TargetUserID    string `json:"targetUserId"`
		TransactionID   string `json:"transactionId"`
		SwapRequestID   string `json:"swapRequestId"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}
	if req.TargetUserID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Target user ID is required"})
		return
	}
	if req.InitiatorUserID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Initiator user ID is required"})
		return
	}
	tx := req.TransactionID
	if tx == "" {
		tx = req.SwapRequestID
	}

	roomID, err := c.calls.InitiateCall(ctx.Request.Context(), tx, req.InitiatorUserID, req.TargetUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPeerOffline):
			ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "One or both users are offline"})
		case errors.Is(err, service.ErrSelfCall):
			ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot call yourself"})
		case errors.Is(err, service.ErrInvalidPayload):
			ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		default:
			c.log.Error("failed to initiate call", sl.Err(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to initiate call"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"roomId":  roomID,
		"message": "Call initiated successfully",
	})
}

func (c *CallController) GetRoom(ctx *gin.Context) {
	snap, err := c.rooms.Get(ctx.Param("roomID"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(snap)})
}

func (c *CallController) ICEServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"iceServers": c.iceServers})
}

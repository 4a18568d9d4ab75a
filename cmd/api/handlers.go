package main

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"krysselista/internal/auth"
	"krysselista/internal/calendar"
	"krysselista/internal/children"
	"krysselista/internal/cloudinary"
	"krysselista/internal/domain"
	"krysselista/internal/kindergarten"
	"krysselista/internal/messaging"
	"krysselista/internal/notify"
	"krysselista/internal/store"
	"krysselista/internal/users"
	"krysselista/internal/ws"
)

type server struct {
	users         *users.Repository
	auth          *auth.Service
	children      *children.Service
	childRepo     *children.Repository
	messages      *messaging.Service
	calendar      *calendar.Service
	notifications *notify.Repository
	kindergartens *kindergarten.Repository
	cdn           *cloudinary.Client
}

func (s *server) registerRoutes(r *gin.Engine, hub *ws.Hub) {
	r.POST("/v1/auth/login", s.handleLogin)
	r.GET("/v1/kindergardens", s.handleListKindergartens)

	authGroup := r.Group("/v1", auth.Middleware(s.auth))

	authGroup.GET("/me", s.handleMe)
	authGroup.GET("/contacts", s.handleListContacts)

	authGroup.GET("/children", s.handleListChildren)
	authGroup.GET("/children/:id", s.handleGetChild)
	authGroup.POST("/children/:id/status", s.handleSetStatus)
	authGroup.GET("/children/:id/absences", s.handleListAbsences)
	authGroup.POST("/children/:id/absences", s.handleRegisterAbsence)
	authGroup.GET("/children/:id/sleep", s.handleListSleep)
	authGroup.POST("/children/:id/sleep", s.handleLogSleep)
	authGroup.GET("/children/:id/food", s.handleListFood)
	authGroup.POST("/children/:id/food", s.handleLogFood)
	authGroup.GET("/children/:id/gallery", s.handleListGallery)
	authGroup.POST("/children/:id/gallery", s.handleAddGalleryImage)

	authGroup.POST("/upload", s.handleUpload)

	authGroup.GET("/calendar/:monthId/events", s.handleMonthEvents)
	authGroup.POST("/calendar/:monthId/events", s.handleAddEvent)

	authGroup.GET("/notifications", s.handleListNotifications)

	authGroup.POST("/messages", s.handleSendMessage)
	authGroup.POST("/messages/broadcast", s.handleBroadcastMessage)
	authGroup.GET("/conversations", s.handleListConversations)
	authGroup.GET("/conversations/:partnerId", s.handleThread)

	if hub != nil {
		// Token travels in the query string; the hub validates it itself.
		r.GET("/v1/ws", hub.Handler(s.auth))
	}
}

// respondErr maps domain errors onto HTTP statuses. Anything unrecognized
// is a backend failure: logged server-side, opaque to the client.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAuthFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, children.ErrAbsenceGated):
		c.JSON(http.StatusConflict, gin.H{"error": "absence already registered today"})
	default:
		log.Printf("backend error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	}
}

func (s *server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_at":    result.Tokens.AccessExp.Unix(),
		"profile":       result.Profile,
	})
}

func (s *server) handleMe(c *gin.Context) {
	sess := auth.SessionFrom(c)
	profile, err := s.users.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleListContacts returns the users the caller can start a conversation
// with: staff see guardians and guardians see staff, within the caller's
// kindergarten.
func (s *server) handleListContacts(c *gin.Context) {
	sess := auth.SessionFrom(c)
	list, err := s.users.ListByRole(c.Request.Context(), sess.KindergartenID, domain.OppositeRole(sess.Role))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}

func (s *server) handleListKindergartens(c *gin.Context) {
	list, err := s.kindergartens.List(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kindergardens": list})
}

func (s *server) handleListChildren(c *gin.Context) {
	sess := auth.SessionFrom(c)

	if sess.IsStaff() {
		list, err := s.childRepo.ListByKindergarten(c.Request.Context(), sess.KindergartenID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"children": list})
		return
	}

	// Guardians see only their own children.
	list := make([]children.Child, 0, len(sess.Children))
	for _, id := range sess.Children {
		child, err := s.childRepo.Get(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			respondErr(c, err)
			return
		}
		list = append(list, child)
	}
	c.JSON(http.StatusOK, gin.H{"children": list})
}

// childAccess loads the child and enforces visibility: staff within the
// same kindergarten, or a guardian listed on the record.
func (s *server) childAccess(c *gin.Context) (children.Child, auth.Session, bool) {
	sess := auth.SessionFrom(c)
	child, err := s.childRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return children.Child{}, sess, false
	}
	if sess.IsStaff() && child.KindergartenID == sess.KindergartenID {
		return child, sess, true
	}
	for _, id := range sess.Children {
		if id == child.ID {
			return child, sess, true
		}
	}
	respondErr(c, domain.ErrForbidden)
	return children.Child{}, sess, false
}

func (s *server) handleGetChild(c *gin.Context) {
	child, _, ok := s.childAccess(c)
	if !ok {
		return
	}

	if s.cdn != nil {
		child.ImageURL = s.cdn.DownloadURL(child.ImageURL)
		for i, ref := range child.Gallery {
			child.Gallery[i] = s.cdn.DownloadURL(ref)
		}
	}
	c.JSON(http.StatusOK, child)
}

func (s *server) requireStaff(c *gin.Context) (auth.Session, bool) {
	sess := auth.SessionFrom(c)
	if !sess.IsStaff() {
		respondErr(c, domain.ErrForbidden)
		return sess, false
	}
	return sess, true
}

func (s *server) handleSetStatus(c *gin.Context) {
	sess, ok := s.requireStaff(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var child children.Child
	var err error
	switch req.Status {
	case children.StatusIn:
		child, err = s.children.MarkPresent(c.Request.Context(), sess, c.Param("id"))
	case children.StatusOut:
		child, err = s.children.MarkAbsentToday(c.Request.Context(), sess, c.Param("id"))
	default:
		// "fravaer" is reachable only through absence registration.
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be inn or ut"})
		return
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (s *server) handleRegisterAbsence(c *gin.Context) {
	child, sess, ok := s.childAccess(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
		Date   string `json:"date" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.children.RegisterAbsence(c.Request.Context(), sess, child.ID, req.Reason, req.Date, req.Note)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *server) handleListAbsences(c *gin.Context) {
	child, _, ok := s.childAccess(c)
	if !ok {
		return
	}
	records, err := s.childRepo.ListAttendance(c.Request.Context(), child.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"absences": records})
}

func (s *server) handleListSleep(c *gin.Context) {
	child, _, ok := s.childAccess(c)
	if !ok {
		return
	}
	logs, err := s.childRepo.ListSleep(c.Request.Context(), child.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sleep": logs})
}

func (s *server) handleLogSleep(c *gin.Context) {
	sess, ok := s.requireStaff(c)
	if !ok {
		return
	}
	var req struct {
		StartTime string `json:"startTime" binding:"required"`
		EndTime   string `json:"endTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.children.LogSleep(c.Request.Context(), sess, c.Param("id"), req.StartTime, req.EndTime)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *server) handleListFood(c *gin.Context) {
	child, _, ok := s.childAccess(c)
	if !ok {
		return
	}
	logs, err := s.childRepo.ListFood(c.Request.Context(), child.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"food": logs})
}

func (s *server) handleLogFood(c *gin.Context) {
	sess, ok := s.requireStaff(c)
	if !ok {
		return
	}
	var req struct {
		Meal        string `json:"meal" binding:"required"`
		Description string `json:"description"`
		Time        string `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.children.LogFood(c.Request.Context(), sess, c.Param("id"), req.Meal, req.Description, req.Time)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *server) handleListGallery(c *gin.Context) {
	child, _, ok := s.childAccess(c)
	if !ok {
		return
	}
	images, err := s.childRepo.ListGallery(c.Request.Context(), child.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if s.cdn != nil {
		for i := range images {
			images[i].ImageURL = s.cdn.DownloadURL(images[i].ImageURL)
		}
	}
	c.JSON(http.StatusOK, gin.H{"gallery": images})
}

func (s *server) handleAddGalleryImage(c *gin.Context) {
	sess, ok := s.requireStaff(c)
	if !ok {
		return
	}
	var req struct {
		ImageURL string `json:"imageUrl" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img, err := s.children.AddGalleryImage(c.Request.Context(), sess, c.Param("id"), req.ImageURL)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// handleUpload accepts a multipart file or a base64 data URL and returns
// the Cloudinary URL for use in gallery records.
func (s *server) handleUpload(c *gin.Context) {
	if s.cdn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	contentType := c.ContentType()
	var result *cloudinary.UploadResult
	var err error

	switch {
	case strings.Contains(contentType, "multipart/form-data"):
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		result, err = s.cdn.UploadBytes(data, header.Filename)

	default:
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		result, err = s.cdn.UploadBase64(body.Data)
	}

	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":       result.SecureURL,
		"public_id": result.PublicID,
		"width":     result.Width,
		"height":    result.Height,
		"bytes":     result.Bytes,
	})
}

func (s *server) handleMonthEvents(c *gin.Context) {
	events, err := s.calendar.MonthEvents(c.Request.Context(), c.Param("monthId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *server) handleAddEvent(c *gin.Context) {
	sess, ok := s.requireStaff(c)
	if !ok {
		return
	}
	var req struct {
		Date        string `json:"date" binding:"required"`
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Start       string `json:"start"`
		End         string `json:"end"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt, err := s.calendar.AddEvent(c.Request.Context(), sess, c.Param("monthId"), calendar.Event{
		Date:        req.Date,
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, evt)
}

func (s *server) handleListNotifications(c *gin.Context) {
	sess := auth.SessionFrom(c)
	list, err := s.notifications.ListForRole(c.Request.Context(), sess.KindergartenID, sess.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (s *server) handleSendMessage(c *gin.Context) {
	sess := auth.SessionFrom(c)
	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
		Text       string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.messages.Send(c.Request.Context(), sess.UserID, req.ReceiverID, req.Text)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *server) handleBroadcastMessage(c *gin.Context) {
	sess := auth.SessionFrom(c)
	var req struct {
		ReceiverIDs []string `json:"receiverIds" binding:"required"`
		Text        string   `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msgs, err := s.messages.SendToMany(c.Request.Context(), sess.UserID, req.ReceiverIDs, req.Text)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"messages": msgs})
}

func (s *server) handleListConversations(c *gin.Context) {
	sess := auth.SessionFrom(c)
	convs, err := s.messages.ConversationsFor(c.Request.Context(), sess.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (s *server) handleThread(c *gin.Context) {
	sess := auth.SessionFrom(c)
	msgs, err := s.messages.ThreadFor(c.Request.Context(), sess.UserID, c.Param("partnerId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

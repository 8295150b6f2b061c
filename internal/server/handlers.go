package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// Submission verdicts reported to metrics.
const (
	verdictAccepted = "accepted"
	verdictRejected = "rejected"
	verdictFailed   = "failed"
)

type submitBody struct {
	Data         map[string]any `json:"data"`
	Metadata     map[string]any `json:"metadata"`
	State        string         `json:"state"`
	SubmissionID string         `json:"submissionId"`
}

type renderBody struct {
	Template string         `json:"template" binding:"required"`
	Data     map[string]any `json:"data"`
	Form     string         `json:"form"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": s.client.Stats()})
}

func (s *Server) listForms(c *gin.Context) {
	names := s.client.Forms()
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"forms": names})
}

func (s *Server) getForm(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	def, err := f.Definition()
	if err != nil {
		s.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) validate(c *gin.Context) {
	name := c.Param("name")
	body, ok := bindSubmission(c)
	if !ok {
		return
	}
	req := formsandbox.ValidateRequest{
		FormName:     name,
		SubmissionID: body.SubmissionID,
		Submission:   &formsandbox.Submission{Data: body.Data, Metadata: body.Metadata, State: body.State},
		Token:        bearer(c),
		Headers:      forwardHeaders(c),
	}

	ctx := c.Request.Context()
	out, err := s.client.Validate(ctx, req)
	var ve *formsandbox.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, formsandbox.ErrFormNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	case errors.As(err, &ve):
		s.observe(name, verdictRejected)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation", "details": ve.Details})
		return
	default:
		s.observe(name, verdictFailed)
		s.logger.Error("submission could not be validated", "form", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed"})
		return
	}

	if err := s.client.Commit(ctx, req, out); err != nil {
		if errors.As(err, &ve) {
			s.observe(name, verdictRejected)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation", "details": ve.Details})
			return
		}
		s.observe(name, verdictFailed)
		s.internal(c, err)
		return
	}
	s.observe(name, verdictAccepted)
	c.JSON(http.StatusOK, out)
}

// evaluate runs the form logic without host checks, for live previews.
func (s *Server) evaluate(c *gin.Context) {
	f, ok := s.form(c)
	if !ok {
		return
	}
	body, ok := bindSubmission(c)
	if !ok {
		return
	}
	res, err := s.client.Process(c.Request.Context(), f, &formsandbox.Submission{
		Data: body.Data, Metadata: body.Metadata, State: body.State,
	})
	if err != nil {
		s.evaluationFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) issueCaptcha(c *gin.Context) {
	if _, ok := s.form(c); !ok {
		return
	}
	token, err := s.client.IssueCaptcha(c.Request.Context(), c.Param("name"))
	if errors.Is(err, formsandbox.ErrNoDatabase) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "captcha_unavailable"})
		return
	}
	if err != nil {
		s.internal(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (s *Server) render(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	var body renderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	var (
		out string
		err error
	)
	if body.Form != "" {
		f, ferr := s.client.Form(body.Form)
		if ferr != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		out, err = s.client.RenderSubmission(c.Request.Context(), body.Template, f, &formsandbox.Submission{Data: body.Data})
	} else {
		out, err = s.client.Render(c.Request.Context(), body.Template, body.Data)
	}
	if err != nil {
		s.evaluationFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

func (s *Server) form(c *gin.Context) (*formsandbox.Form, bool) {
	f, err := s.client.Form(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return nil, false
	}
	return f, true
}

// evaluationFailed reports a script failure by code and location only.
func (s *Server) evaluationFailed(c *gin.Context, err error) {
	var ee *formsandbox.EvaluationError
	if !errors.As(err, &ee) {
		s.internal(c, err)
		return
	}
	s.logger.Warn("evaluation failed", "request_id", c.GetString(requestIDKey), "error", err)
	status := http.StatusUnprocessableEntity
	if ee.IsTimeout() {
		status = http.StatusGatewayTimeout
	}
	resp := gin.H{"error": "evaluation_failed", "code": ee.Code}
	if ee.Component != "" {
		resp["component"] = ee.Component
		resp["stage"] = ee.Stage
	}
	c.JSON(status, resp)
}

func (s *Server) internal(c *gin.Context, err error) {
	s.logger.Error("request failed", "request_id", c.GetString(requestIDKey), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}

func (s *Server) observe(form, verdict string) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(form, verdict)
	}
}

func bindSubmission(c *gin.Context) (*submitBody, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return nil, false
	}
	if body.Data == nil {
		body.Data = map[string]any{}
	}
	return &body, true
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

// forwardHeaders passes through the headers data sources may need.
func forwardHeaders(c *gin.Context) map[string]string {
	out := map[string]string{}
	for _, k := range []string{"Accept-Language", RequestIDHeader} {
		if v := c.GetHeader(k); v != "" {
			out[k] = v
		}
	}
	if id := c.GetString(requestIDKey); id != "" {
		out[RequestIDHeader] = id
	}
	return out
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"talentline/internal/domain"
	"talentline/internal/engine"
	"talentline/internal/metrics"
	"talentline/internal/pipeline"
	"talentline/internal/repo"
)

const defaultMaxUpload = 10 << 20

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
	// MaxUploadBytes caps one multipart application, attachments included.
	MaxUploadBytes int64
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"stage_not_forward"`
	Message string         `json:"message" example:"target stage must be after the current stage"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"stage\":\"Round 1\"}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the portal API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Engine.Config == nil {
		return nil, errors.New("engine config not loaded")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(metrics.Middleware)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Talentline Portal API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerApplications(router, api, basePath, cfg.Engine, maxUpload)
	registerDepartments(group, cfg.Engine)
	registerCandidates(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)
	router.Handle("/metrics", metrics.Handler())

	return router, nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"latency", time.Since(start),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		details := map[string]any{}
		for f, msg := range ve.Fields {
			details[f] = msg
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"fields": details})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, repo.ErrDuplicate):
		return newAPIError(http.StatusConflict, "duplicate_application", msg, nil)
	case errors.Is(err, engine.ErrUnknownDepartment):
		return newAPIError(http.StatusNotFound, "unknown_department", msg, nil)
	case errors.Is(err, pipeline.ErrStageNotForward):
		return newAPIError(http.StatusConflict, "stage_not_forward", msg, nil)
	case errors.Is(err, pipeline.ErrRoundDecided):
		return newAPIError(http.StatusConflict, "round_decided", msg, nil)
	case errors.Is(err, pipeline.ErrTerminalStage):
		return newAPIError(http.StatusConflict, "terminal_stage", msg, nil)
	case errors.Is(err, pipeline.ErrDecisionIncomplete):
		return newAPIError(http.StatusBadRequest, "target_stage_required", msg, nil)
	case errors.Is(err, engine.ErrInvalidOutcome), errors.Is(err, pipeline.ErrInvalidStage):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "applications"):   true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Talentline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;. Submitting an application needs no token.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// registerApplications mounts the multipart submit route directly on chi;
// the body is a JSON "data" part plus the resume and optional academics files.
// huma does not see the route, so its operation is added to the document here.
func registerApplications(r chi.Router, api huma.API, basePath string, e engine.Engine, maxUpload int64) {
	route := path.Join(basePath, "applications")
	api.OpenAPI().AddOperation(submitOperation(api.OpenAPI().Components.Schemas, route))
	r.Post(route, func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxUpload)
		if err := req.ParseMultipartForm(maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "", "application exceeds upload limit", map[string]any{"limit": maxUpload}))
				return
			}
			respondStatusError(w, newAPIError(http.StatusBadRequest, "", "multipart form required", nil))
			return
		}
		defer req.MultipartForm.RemoveAll()

		data := req.FormValue("data")
		if data == "" {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "", "data part required", nil))
			return
		}
		resume, err := formAttachment(req, "resume")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "", err.Error(), nil))
			return
		}
		if !resume.Present() {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "missing_resume", "resume is required", nil))
			return
		}
		academics, err := formAttachment(req, "academics")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "", err.Error(), nil))
			return
		}
		actor := ""
		if p, ok := principalFromContext(req.Context()); ok {
			actor = p.Subject
		}
		conf, err := e.SubmitApplication(req.Context(), engine.SubmitOptions{
			Fields:    []byte(data),
			Resume:    resume,
			Academics: academics,
			ActorID:   actor,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ConfirmationResponse{
			ApplicantID: conf.ApplicantID,
			Stage:       conf.Stage.String(),
			SubmittedAt: conf.SubmittedAt,
		})
	})
}

func submitOperation(registry huma.Registry, route string) *huma.Operation {
	return &huma.Operation{
		OperationID: "submit-application",
		Method:      http.MethodPost,
		Path:        route,
		Summary:     "Submit an application",
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"multipart/form-data": {
					Schema: &huma.Schema{
						Type:     huma.TypeObject,
						Required: []string{"data", "resume"},
						Properties: map[string]*huma.Schema{
							"data":      {Type: huma.TypeString, Description: "JSON-encoded application fields"},
							"resume":    {Type: huma.TypeString, Format: "binary", Description: "PDF or DOC resume"},
							"academics": {Type: huma.TypeString, Format: "binary", Description: "optional academic records"},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"201": {
				Description: "Created",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: registry.Schema(reflect.TypeOf(ConfirmationResponse{}), true, "ConfirmationResponse"),
					},
				},
			},
		},
	}
}

// formAttachment reads one optional file part; nil when it is absent.
func formAttachment(req *http.Request, name string) (*domain.Attachment, error) {
	f, hdr, err := req.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()
	return readAttachment(f, hdr)
}

func readAttachment(f multipart.File, hdr *multipart.FileHeader) (*domain.Attachment, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &domain.Attachment{Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}

func registerDepartments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DepartmentsResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		return &struct {
			Body DepartmentsResponse `json:"body"`
		}{Body: DepartmentsResponse{Items: nonNilSlice(e.Departments())}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stage-counts",
		Method:      http.MethodGet,
		Path:        "/departments/{department}/counts",
		Summary:     "Active, rejected and accepted candidates per stage",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Department string `path:"department"`
	}) (*struct {
		Body StageCountsResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		counts, err := e.StageCounts(ctx, input.Department)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StageCountsResponse `json:"body"`
		}{Body: countsResponse(input.Department, counts)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/departments/{department}/stages/{stage}/candidates",
		Summary:     "List candidates of a department at one stage",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Department string `path:"department"`
		Stage      string `path:"stage" doc:"Stage name or slug, e.g. round-1"`
		Page       int    `query:"page" default:"1" minimum:"1"`
		PageSize   int    `query:"page_size" minimum:"0" maximum:"100"`
	}) (*struct {
		Body CandidatePageResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		stage, err := domain.ParseStage(input.Stage)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "", err.Error(), map[string]any{"stage": input.Stage})
		}
		page, err := e.ListCandidates(ctx, input.Department, stage, input.Page, input.PageSize)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidatePageResponse `json:"body"`
		}{Body: pageResponse(page, nextStagesFor)}, nil
	})
}

// nextStagesFor lists the stages a reviewer may still move c to.
func nextStagesFor(c domain.Candidate) []domain.Stage {
	if pipeline.Decidable(c) != nil {
		return nil
	}
	return pipeline.NextStages(c.Stage)
}

func registerCandidates(api huma.API, e engine.Engine) {
	type candidatePath struct {
		ApplicantID string `path:"applicant_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{applicant_id}",
		Summary:     "Get one candidate with their application fields",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *candidatePath) (*struct {
		Body ApplicationResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		app, err := e.GetCandidate(ctx, input.ApplicantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplicationResponse `json:"body"`
		}{Body: applicationResponse(app, nextStagesFor(app.Candidate))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-candidate",
		Method:      http.MethodPost,
		Path:        "/candidates/{applicant_id}/move",
		Summary:     "Clear a candidate into a later stage, or reject them at the current one",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ApplicantID string               `path:"applicant_id"`
		Body        MoveCandidateRequest `json:"body"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleHR)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.MoveOptions{
			ApplicantID: input.ApplicantID,
			Outcome:     domain.Outcome(input.Body.Outcome),
			ActorID:     p.Subject,
		}
		if t := strings.TrimSpace(input.Body.TargetStage); t != "" && opts.Outcome == domain.OutcomeCleared {
			stage, err := domain.ParseStage(t)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "", err.Error(), map[string]any{"target_stage": t})
			}
			opts.Target = &stage
		}
		c, err := e.MoveCandidate(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c, nextStagesFor(c))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "candidate-history",
		Method:      http.MethodGet,
		Path:        "/candidates/{applicant_id}/history",
		Summary:     "Stage decisions recorded for a candidate",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *candidatePath) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		moves, err := e.History(ctx, input.ApplicantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: historyResponse(moves)}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-notification",
		Method:        http.MethodPost,
		Path:          "/notifications",
		Summary:       "Queue a message to a candidate",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body NotificationRequest `json:"body"`
	}) (*struct {
		Body NotificationResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleHR)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.SendNotification(ctx, engine.NotifyOptions{
			Notification: domain.Notification{
				ApplicantID: input.Body.ApplicantID,
				Email:       input.Body.Email,
				Message:     input.Body.Message,
				Link:        input.Body.Link,
				Outcome:     domain.Outcome(input.Body.Outcome),
			},
			ActorID: p.Subject,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificationResponse `json:"body"`
		}{Body: notificationResponse(n)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"application,notification,decision"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, RoleHR); err != nil {
			return nil, err
		}
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Department, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{Subject: principal.Subject, Roles: nonNilSlice(principal.Roles)}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		subject := strings.TrimSpace(input.Body.Subject)
		if subject == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "subject is required", nil)
		}
		token, err := IssueToken(authCfg.JWTSecret, subject, input.Body.Roles, authCfg.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		resp := DevLoginResponse{Token: token}
		if authCfg.TokenTTL > 0 {
			resp.ExpiresAt = time.Now().Add(authCfg.TokenTTL).UTC()
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 500 {
		return 500
	}
	return in
}

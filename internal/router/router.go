// Package router wires the HTTP surface: public pages, the authenticated
// dashboard and QR operations, the inline image route, and the
// trusted-subnet internal stats endpoint. Handlers parse forms and write
// responses; everything else is delegated to the service. Errors become a
// flash notice plus a redirect to a safe page.
package router

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/qrvault/internal/auth"
	"github.com/patric-chuzhbe/qrvault/internal/flash"
	"github.com/patric-chuzhbe/qrvault/internal/gzippedhttp"
	"github.com/patric-chuzhbe/qrvault/internal/ipchecker"
	"github.com/patric-chuzhbe/qrvault/internal/logger"
	"github.com/patric-chuzhbe/qrvault/internal/models"
	"github.com/patric-chuzhbe/qrvault/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

const aboutPageHTML = `
    <h1>About QR Vault</h1>
    <p>This simple web application allows you to generate QR codes for text or URLs.</p>
    <p><a href="/">Back to home</a></p>
`

type pageData struct {
	Flash    string
	LoggedIn bool
	Username string
	Rows     []models.DashboardRow
}

// Router holds the handler dependencies. Its methods are the route handlers.
type Router struct {
	service   *service.Service
	auth      *auth.Auth
	ipChecker *ipchecker.IPChecker
	validate  *validator.Validate
	templates *template.Template
}

// New assembles the chi mux with all routes and middleware.
func New(
	theService *service.Service,
	theAuth *auth.Auth,
	theIPChecker *ipchecker.IPChecker,
) (http.Handler, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("in internal/router/router.go/New(): error while `template.ParseFS()` calling: %w", err)
	}

	myRouter := &Router{
		service:   theService,
		auth:      theAuth,
		ipChecker: theIPChecker,
		validate:  validator.New(),
		templates: templates,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/`, myRouter.GetIndex)
	router.Get(`/about`, myRouter.GetAbout)
	router.Get(`/signup`, myRouter.GetSignup)
	router.Post(`/signup`, myRouter.PostSignup)
	router.Get(`/login`, myRouter.GetLogin)
	router.Post(`/login`, myRouter.PostLogin)
	router.Get(`/logout`, myRouter.GetLogout)
	router.Get(`/qr_images/{id}`, myRouter.GetQRImage)
	router.Get(`/ping`, myRouter.GetPing)
	router.Get(`/api/internal/stats`, myRouter.GetInternalStats)

	router.Group(func(protected chi.Router) {
		protected.Use(theAuth.RequireUser)
		protected.Get(`/dashboard`, myRouter.GetDashboard)
		protected.Post(`/generate-qr`, myRouter.PostGenerateQR)
		protected.Get(`/delete-qr/{id}`, myRouter.GetDeleteQR)
		protected.Get(`/download-qr/{id}/{captionType}`, myRouter.GetDownloadQR)
	})

	return router, nil
}

func (rt *Router) renderPage(response http.ResponseWriter, request *http.Request, name string, data pageData) {
	notice, found := flash.Take(response, request)
	if found {
		data.Flash = notice
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rt.templates.ExecuteTemplate(response, name, data); err != nil {
		logger.Log.Debugln("Error calling the `rt.templates.ExecuteTemplate()`: ", zap.Error(err))
	}
}

func redirectWithFlash(response http.ResponseWriter, request *http.Request, message, location string) {
	flash.Set(response, message)
	http.Redirect(response, request, location, http.StatusFound)
}

// GetIndex renders the landing page.
func (rt *Router) GetIndex(response http.ResponseWriter, request *http.Request) {
	username, loggedIn := rt.auth.CurrentUsername(request)
	rt.renderPage(response, request, "index.html", pageData{
		LoggedIn: loggedIn,
		Username: username,
	})
}

// GetAbout renders the static about page.
func (rt *Router) GetAbout(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := response.Write([]byte(aboutPageHTML))
	if err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}

// GetSignup renders the signup form.
func (rt *Router) GetSignup(response http.ResponseWriter, request *http.Request) {
	rt.renderPage(response, request, "signup.html", pageData{})
}

// PostSignup creates an account and opens a session for it.
func (rt *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	form := models.SignupForm{
		Username: request.FormValue("email"),
		Password: request.FormValue("password"),
	}
	if err := rt.validate.Struct(form); err != nil {
		redirectWithFlash(response, request, "Email and password are required", "/signup")
		return
	}

	err := rt.service.SignUp(request.Context(), form.Username, form.Password)
	if errors.Is(err, models.ErrUserAlreadyExists) {
		redirectWithFlash(response, request, "Username already exists", "/signup")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.SignUp()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/signup")
		return
	}

	if err := rt.auth.OpenSession(response, form.Username); err != nil {
		logger.Log.Debugln("Error calling the `rt.auth.OpenSession()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/login")
		return
	}

	http.Redirect(response, request, "/dashboard", http.StatusFound)
}

// GetLogin renders the login form.
func (rt *Router) GetLogin(response http.ResponseWriter, request *http.Request) {
	rt.renderPage(response, request, "login.html", pageData{})
}

// PostLogin authenticates the submitted credentials and opens a session.
func (rt *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	username := request.FormValue("email")
	password := request.FormValue("password")

	verified, err := rt.service.VerifyLogin(request.Context(), username, password)
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.VerifyLogin()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/login")
		return
	}
	if !verified {
		redirectWithFlash(response, request, "Invalid username or password", "/login")
		return
	}

	if err := rt.auth.OpenSession(response, username); err != nil {
		logger.Log.Debugln("Error calling the `rt.auth.OpenSession()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/login")
		return
	}

	http.Redirect(response, request, "/dashboard", http.StatusFound)
}

// GetLogout clears the session identity marker.
func (rt *Router) GetLogout(response http.ResponseWriter, request *http.Request) {
	rt.auth.CloseSession(response)
	http.Redirect(response, request, "/", http.StatusFound)
}

// GetDashboard lists the caller's records, newest first.
func (rt *Router) GetDashboard(response http.ResponseWriter, request *http.Request) {
	username, _ := auth.UsernameFromContext(request.Context())

	rows, err := rt.service.DashboardRows(request.Context(), username)
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.DashboardRows()`: ", zap.Error(err))
		rows = nil
	}

	rt.renderPage(response, request, "dashboard.html", pageData{
		LoggedIn: true,
		Username: username,
		Rows:     rows,
	})
}

// PostGenerateQR creates a record from the submitted link.
func (rt *Router) PostGenerateQR(response http.ResponseWriter, request *http.Request) {
	username, _ := auth.UsernameFromContext(request.Context())

	form := models.GenerateForm{
		Link: request.FormValue("link"),
	}
	if err := rt.validate.Struct(form); err != nil {
		redirectWithFlash(response, request, "No data provided", "/dashboard")
		return
	}

	_, err := rt.service.GenerateQR(request.Context(), username, form.Link)
	if errors.Is(err, models.ErrInvalidInput) {
		redirectWithFlash(response, request, "No data provided", "/dashboard")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.GenerateQR()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/dashboard")
		return
	}

	http.Redirect(response, request, "/dashboard", http.StatusFound)
}

// GetDeleteQR deletes the caller's record by id. A foreign or missing id is
// a no-op.
func (rt *Router) GetDeleteQR(response http.ResponseWriter, request *http.Request) {
	username, _ := auth.UsernameFromContext(request.Context())
	id := chi.URLParam(request, "id")

	if err := rt.service.DeleteQR(request.Context(), id, username); err != nil {
		logger.Log.Debugln("Error calling the `rt.service.DeleteQR()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/dashboard")
		return
	}

	http.Redirect(response, request, "/dashboard", http.StatusFound)
}

// GetDownloadQR streams the record's bitmap as a file attachment.
func (rt *Router) GetDownloadQR(response http.ResponseWriter, request *http.Request) {
	username, _ := auth.UsernameFromContext(request.Context())
	id := chi.URLParam(request, "id")
	captionType := chi.URLParam(request, "captionType")

	pngData, filename, err := rt.service.DownloadQR(request.Context(), id, username, captionType)
	if errors.Is(err, models.ErrNotFound) {
		redirectWithFlash(response, request, "QR code not found", "/dashboard")
		return
	}
	if errors.Is(err, models.ErrInvalidInput) {
		redirectWithFlash(response, request, "Unknown download format", "/dashboard")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.DownloadQR()`: ", zap.Error(err))
		redirectWithFlash(response, request, "An error occurred, please try again", "/dashboard")
		return
	}

	response.Header().Set("Content-Type", "image/png")
	response.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := response.Write(pngData); err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}

// GetQRImage serves the inline bitmap for a record. The route is public and
// unscoped, mirroring its use from dashboard image tags.
func (rt *Router) GetQRImage(response http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")

	pngData, err := rt.service.InlineImage(request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(response, "QR code not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.InlineImage()`: ", zap.Error(err))
		http.Error(response, "internal error", http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "image/png")
	if _, err := response.Write(pngData); err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}

// GetPing reports storage health.
func (rt *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := rt.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `rt.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	response.WriteHeader(http.StatusOK)
}

// GetInternalStats returns user and record totals to callers inside the
// trusted subnet.
func (rt *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	clientIP, err := rt.ipChecker.GetClientIP(request)
	if err != nil || !rt.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := rt.service.Stats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.service.Stats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(response).Encode(stats); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}

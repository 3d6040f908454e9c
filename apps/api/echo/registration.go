package echoapi

import (
	"io"
	"mime"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ravi1475/School-ERPS-sub002/core"
	"github.com/ravi1475/School-ERPS-sub002/core/registration"
)

const documentFormField = "file"

type (
	registrationApi struct {
		svc        *registration.Service
		validate   *validator.Validate
		translator ut.Translator
	}

	EditFieldRequest struct {
		Path  string      `json:"path" validate:"required,dotpath"`
		Value interface{} `json:"value"`
	}

	StepResponse struct {
		registration.Step
		Documents []string `json:"documents,omitempty"`
	}
)

func registerRegistrationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *registration.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := registrationApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	rg := g.Group("/registrations", jwt, staffMiddleware())
	rg.POST("", api.start)
	rg.GET("", api.query, adminMiddleware())
	rg.GET("/steps", api.steps)

	// detail endpoints
	dg := rg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.discard)
	dg.PATCH("/fields", api.editField)
	dg.GET("/documents/:slot", api.downloadDocument)
	dg.PUT("/documents/:slot", api.uploadDocument)
	dg.DELETE("/documents/:slot", api.removeDocument)
	dg.POST("/next", api.next)
	dg.POST("/back", api.back)
	dg.POST("/submit", api.submit)
}

// Handlers

func (api *registrationApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	createdBy := claims.Username
	if createdBy == "" {
		createdBy = claims.Subject
	}

	draft, err := api.svc.Start(ctx.Request().Context(), createdBy)
	if err != nil {
		return errors.Wrap(err, "starting registration")
	}
	return ctx.JSON(http.StatusCreated, draft)
}

func (api *registrationApi) query(ctx echo.Context) error {
	var filter registration.DraftFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to DraftFilter")
	}
	var ordering Ordering
	ordering.Bind(ctx)

	drafts, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}
	return ctx.JSON(http.StatusOK, drafts)
}

func (api *registrationApi) steps(ctx echo.Context) error {
	resp := make([]StepResponse, 0, len(registration.Steps))
	for _, step := range registration.Steps {
		sr := StepResponse{Step: step}
		if step.Number == registration.LastStep {
			sr.Documents = registration.DocumentSlots()
		}
		resp = append(resp, sr)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *registrationApi) retrieve(ctx echo.Context) error {
	draft, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting registration")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *registrationApi) discard(ctx echo.Context) error {
	if err := api.svc.Discard(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "discarding registration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *registrationApi) editField(ctx echo.Context) error {
	var data EditFieldRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EditFieldRequest")
	}
	if err := core.ValidateStruct(api.validate, api.translator, data); err != nil {
		return err
	}

	draft, err := api.svc.EditField(ctx.Request().Context(), ctx.Param("id"), data.Path, data.Value)
	if err != nil {
		return errors.Wrap(err, "editing field")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *registrationApi) downloadDocument(ctx echo.Context) error {
	doc, rc, err := api.svc.OpenDocument(ctx.Request().Context(), ctx.Param("id"), ctx.Param("slot"))
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": doc.Name})
	if disposition == "" {
		disposition = "inline"
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return ctx.Stream(http.StatusOK, doc.ContentType, rc)
}

func (api *registrationApi) uploadDocument(ctx echo.Context) error {
	slot := ctx.Param("slot")
	if !registration.IsDocumentSlot(slot) {
		return errors.Wrapf(registration.ErrUnknownSlot, "%q", slot)
	}

	fh, err := ctx.FormFile(documentFormField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: documentFormField, Error: "This field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func(c io.Closer) { _ = c.Close() }(f)

	draft, err := api.svc.UploadDocument(ctx.Request().Context(), ctx.Param("id"), slot, fh.Filename, f)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *registrationApi) removeDocument(ctx echo.Context) error {
	draft, err := api.svc.RemoveDocument(ctx.Request().Context(), ctx.Param("id"), ctx.Param("slot"))
	if err != nil {
		return errors.Wrap(err, "removing document")
	}
	return ctx.JSON(http.StatusOK, draft)
}

// next answers 422 with the step errors when the current step is not valid.
func (api *registrationApi) next(ctx echo.Context) error {
	draft, err := api.svc.Advance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "advancing registration")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *registrationApi) back(ctx echo.Context) error {
	draft, err := api.svc.Retreat(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retreating registration")
	}
	return ctx.JSON(http.StatusOK, draft)
}

// submit answers 200 with the settled draft whether the backend accepted the registration
// (status "succeeded") or rejected it (status "failed" and the failure message).
func (api *registrationApi) submit(ctx echo.Context) error {
	draft, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting registration")
	}
	return ctx.JSON(http.StatusOK, draft)
}

package rooms

import (
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	auth "github.com/mavi3006/hotel-auth"
)

const (
	TextCodeRoomNotFound    = "ROOM_NOT_FOUND"
	TextCodeRoomNumberTaken = "ROOM_NUMBER_TAKEN"
)

// ErrRoomNotFound is returned for unknown or deleted rooms
var ErrRoomNotFound = goerrors.New("Room not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRoomNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoomNumberTaken is returned when another live room has the same number
var ErrRoomNumberTaken = goerrors.New("Room number already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeRoomNumberTaken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidQuery is returned when the query string cannot be decoded
var ErrInvalidQuery = goerrors.New("Invalid query parameters", goerrors.CategoryBadInput).
	WithTextCode(auth.TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

type Controller struct {
	Repo       Repository
	Logger     auth.Logger
	ContextKey string
	Production bool

	ErrorHandler func(c *fiber.Ctx, err error) error
}

type ControllerOption func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger auth.Logger) ControllerOption {
	return func(rc *Controller) {
		if logger != nil {
			rc.Logger = logger
		}
	}
}

// WithProduction hides stack traces from error bodies
func WithProduction(production bool) ControllerOption {
	return func(rc *Controller) {
		rc.Production = production
	}
}

// WithContextKey sets the locals key the principal is read from
func WithContextKey(key string) ControllerOption {
	return func(rc *Controller) {
		if key != "" {
			rc.ContextKey = key
		}
	}
}

func NewController(repo Repository, opts ...ControllerOption) *Controller {
	rc := &Controller{
		Repo:       repo,
		ContextKey: auth.DefaultContextKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rc)
		}
	}
	if rc.Logger == nil {
		rc.Logger = auth.NewLogger("development", "info").With("component", "rooms")
	}
	if rc.ErrorHandler == nil {
		rc.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return auth.WriteError(c, err, rc.Production, rc.Logger)
		}
	}
	return rc
}

// RegisterRoutes mounts the rooms API on r. Reads are public.
func RegisterRoutes(r fiber.Router, rc *Controller, mw *auth.RouteAuthenticator) {
	r.Get("/available", rc.Available)
	r.Get("/", rc.List)
	r.Get("/:id", rc.Get)

	protected := mw.ProtectedRoute()
	r.Post("/", protected, rc.Create)
	r.Put("/:id", protected, rc.Update)
	r.Delete("/:id", protected, rc.Delete)
}

func (rc *Controller) Available(c *fiber.Ctx) error {
	q := new(AvailableQuery)
	if err := rc.bindQuery(c, q); err != nil {
		return rc.ErrorHandler(c, err)
	}

	records, err := rc.Repo.Available(c.UserContext(), AvailableFilter{
		MinCapacity: q.Capacity,
		Type:        q.Type,
	})
	if err != nil {
		return rc.ErrorHandler(c, err)
	}

	return c.JSON(auth.SuccessResponse{
		Success: true,
		Data:    fiber.Map{"rooms": records, "count": len(records)},
	})
}

func (rc *Controller) List(c *fiber.Ctx) error {
	q := new(ListQuery)
	if err := rc.bindQuery(c, q); err != nil {
		return rc.ErrorHandler(c, err)
	}

	filter := q.Filter()
	records, total, err := rc.Repo.List(c.UserContext(), filter)
	if err != nil {
		return rc.ErrorHandler(c, err)
	}

	return c.JSON(auth.SuccessResponse{
		Success: true,
		Data: fiber.Map{
			"rooms":      records,
			"pagination": auth.NewPagination(filter.Page, filter.Limit, total),
		},
	})
}

func (rc *Controller) Get(c *fiber.Ctx) error {
	room, err := rc.target(c)
	if err != nil {
		return rc.ErrorHandler(c, err)
	}
	return c.JSON(auth.SuccessResponse{
		Success: true,
		Data:    fiber.Map{"room": room},
	})
}

func (rc *Controller) Create(c *fiber.Ctx) error {
	payload := new(CreatePayload)
	if err := rc.bind(c, payload); err != nil {
		return rc.ErrorHandler(c, err)
	}

	room := payload.Room()
	if err := rc.ensureNumberFree(c, room.Number, uuid.Nil); err != nil {
		return rc.ErrorHandler(c, err)
	}

	if p, ok := auth.GetPrincipal(c, rc.ContextKey); ok {
		if id, ok := p.UUID(); ok {
			room.CreatedBy = &id
		}
	}

	created, err := rc.Repo.Create(c.UserContext(), room)
	if err != nil {
		return rc.ErrorHandler(c, mapWriteError(err))
	}

	rc.Logger.Info("room created", "room_id", created.ID, "number", created.Number)

	return c.Status(fiber.StatusCreated).JSON(auth.SuccessResponse{
		Success: true,
		Message: "Room created successfully",
		Data:    fiber.Map{"room": created},
	})
}

func (rc *Controller) Update(c *fiber.Ctx) error {
	room, err := rc.target(c)
	if err != nil {
		return rc.ErrorHandler(c, err)
	}

	payload := new(UpdatePayload)
	if err := rc.bind(c, payload); err != nil {
		return rc.ErrorHandler(c, err)
	}

	if payload.Number != nil && *payload.Number != room.Number {
		if err := rc.ensureNumberFree(c, *payload.Number, room.ID); err != nil {
			return rc.ErrorHandler(c, err)
		}
	}

	payload.Apply(room)
	updated, err := rc.Repo.Update(c.UserContext(), room)
	if err != nil {
		return rc.ErrorHandler(c, mapWriteError(err))
	}

	return c.JSON(auth.SuccessResponse{
		Success: true,
		Message: "Room updated successfully",
		Data:    fiber.Map{"room": updated},
	})
}

func (rc *Controller) Delete(c *fiber.Ctx) error {
	room, err := rc.target(c)
	if err != nil {
		return rc.ErrorHandler(c, err)
	}

	deletedBy := ""
	if p, ok := auth.GetPrincipal(c, rc.ContextKey); ok {
		deletedBy = p.ID
	}

	if err := rc.Repo.SoftDelete(c.UserContext(), room.ID, deletedBy); err != nil {
		return rc.ErrorHandler(c, mapWriteError(err))
	}

	rc.Logger.Info("room deleted", "room_id", room.ID, "deleted_by", deletedBy)

	return c.JSON(auth.SuccessResponse{
		Success: true,
		Message: "Room deleted successfully",
	})
}

func (rc *Controller) ensureNumberFree(c *fiber.Ctx, number int, except uuid.UUID) error {
	taken, err := rc.Repo.NumberInUse(c.UserContext(), number, except)
	if err != nil {
		return err
	}
	if taken {
		return ErrRoomNumberTaken
	}
	return nil
}

func (rc *Controller) target(c *fiber.Ctx) (*Room, error) {
	room, err := rc.Repo.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if auth.IsRecordNotFound(err) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

type validatable interface {
	Validate() error
}

func (rc *Controller) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		rc.Logger.Debug("failed to parse payload", "path", c.Path(), "error", err)
		return auth.ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return auth.AsValidationError(err)
	}
	return nil
}

func (rc *Controller) bindQuery(c *fiber.Ctx, q validatable) error {
	if err := c.QueryParser(q); err != nil {
		rc.Logger.Debug("failed to parse query", "path", c.Path(), "error", err)
		return ErrInvalidQuery
	}
	if err := q.Validate(); err != nil {
		return auth.AsValidationError(err)
	}
	return nil
}

// mapWriteError turns store level not found and unique collisions into the
// room errors callers expect
func mapWriteError(err error) error {
	switch {
	case auth.IsRecordNotFound(err):
		return ErrRoomNotFound
	case auth.HasTextCode(err, auth.TextCodeDuplicate):
		return ErrRoomNumberTaken
	default:
		return err
	}
}

package user

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type UserApi struct {
	Controller *UserController
	config     *config.Config
}

func NewUserApi(controller *UserController, config *config.Config) *UserApi {
	return &UserApi{
		Controller: controller,
		config:     config,
	}
}

func (a *UserApi) Setup(app *fiber.App) {
	app.Get("/agent/:id", a.Controller.GetAgent)

	api := app.Group("/api")
	users := api.Group("/users", middleware.AuthMiddleware(a.config.SkipAuth))
	users.Get("/me", a.Controller.GetProfile)
}

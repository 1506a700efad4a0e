package internal

import (
	"net/http"

	"ledgerd/internal/controllers"
	"ledgerd/internal/providers"
	"ledgerd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/month", http.HandlerFunc(apiController.GetMonth))
	routers.Post("/month/refresh", http.HandlerFunc(apiController.RefreshMonth))
	routers.Post("/preload", http.HandlerFunc(apiController.Preload))
	routers.Get("/categories", http.HandlerFunc(apiController.GetCategories))
	routers.Post("/categories/refresh", http.HandlerFunc(apiController.RefreshCategories))
	routers.Post("/records", http.HandlerFunc(apiController.CreateRecord))
	routers.Put("/records", http.HandlerFunc(apiController.UpdateRecord))
	routers.Delete("/records", http.HandlerFunc(apiController.DeleteRecord))
	routers.Get("/recommend", http.HandlerFunc(apiController.Recommend))
	routers.Get("/export", http.HandlerFunc(apiController.ExportCSV))
	routers.Post("/upload", http.HandlerFunc(apiController.Upload))
	return routers
}

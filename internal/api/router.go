package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nmedina/skulens/internal/api/handler"
	"github.com/nmedina/skulens/internal/api/middleware"
	"github.com/nmedina/skulens/internal/config"
	"github.com/nmedina/skulens/internal/featurestore"
	"github.com/nmedina/skulens/internal/logger"
	"github.com/nmedina/skulens/internal/repository"
	"github.com/nmedina/skulens/internal/service"
)

// Services bundles the wired services the router exposes.
type Services struct {
	Register *service.RegisterService
	Identify *service.IdentifyService
	Analysis *service.AnalysisService
	Store    *featurestore.Store
	Products *repository.ProductRepository
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(svcs Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(svcs.Store)
	productHandler := handler.NewProductHandler(svcs.Register, svcs.Products)
	identifyHandler := handler.NewIdentifyHandler(svcs.Identify)
	versionHandler := handler.NewVersionHandler(svcs.Store)
	analysisHandler := handler.NewAnalysisHandler(svcs.Analysis, cfg.Pipeline.WorkDir)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Products
		v1.POST("/products", productHandler.Register)
		v1.POST("/products/preview", productHandler.Preview)
		v1.GET("/products", productHandler.List)
		v1.GET("/products/:id", productHandler.Get)

		// Identification
		v1.POST("/identify", identifyHandler.Identify)

		// Video analysis
		v1.POST("/videos/analyze", analysisHandler.Analyze)

		// Snapshot versions
		v1.GET("/versions", versionHandler.List)
		v1.POST("/versions/:id/restore", versionHandler.Restore)
	}

	return r
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/events"
	"clinic-booking-server/internal/handlers"
	"clinic-booking-server/internal/lock"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
)

// Dependencies are the collaborators shared by the handlers.
type Dependencies struct {
	DB        *gorm.DB
	Config    *config.Config
	Planner   *scheduling.Planner
	Locker    lock.Locker
	Publisher events.Publisher
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	db, cfg := deps.DB, deps.Config

	appointmentRepo := repository.NewAppointmentRepository(db)
	guard := scheduling.NewGuard(appointmentRepo, deps.Locker)

	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	doctorHandler := handlers.NewDoctorHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db, appointmentRepo, guard, deps.Planner, deps.Publisher)
	testResultHandler := handlers.NewTestResultHandler(db)

	auth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.POST("/logout", authHandler.Logout)
		}

		public.GET("/doctors", doctorHandler.GetDoctors)
		public.GET("/doctors/specializations", doctorHandler.GetSpecializations)
		public.GET("/doctors/:id", doctorHandler.GetDoctorByID)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(auth)
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), userHandler.GetPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(adminOnly)
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		doctorRoutes := private.Group("/doctors")
		doctorRoutes.Use(adminOnly)
		{
			doctorRoutes.POST("", doctorHandler.CreateDoctor)
			doctorRoutes.PUT("/:id", doctorHandler.UpdateDoctor)
			doctorRoutes.DELETE("/:id", doctorHandler.DeleteDoctor)
		}

		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("/available-slots/:doctorId", appointmentHandler.GetAvailableSlots)
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("/me", appointmentHandler.GetMyAppointments)
			appointmentRoutes.GET("/doctor/me", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.GetDoctorAppointments)
			appointmentRoutes.GET("", adminOnly, appointmentHandler.GetAllAppointments)

			// Authorization for the routes below happens in the handler.
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PATCH("/:id/reschedule", appointmentHandler.RescheduleAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.CancelAppointment)
		}

		testResultRoutes := private.Group("/test-results")
		{
			testResultRoutes.GET("/me", testResultHandler.GetMyTestResults)
			testResultRoutes.GET("/doctor/me", middleware.RoleAuthMiddleware(models.RoleDoctor), testResultHandler.GetDoctorTestResults)
			testResultRoutes.GET("", adminOnly, testResultHandler.GetAllTestResults)
			testResultRoutes.GET("/:id", testResultHandler.GetTestResultByID)
			testResultRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), testResultHandler.CreateTestResult)
			testResultRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), testResultHandler.UpdateTestResult)
			testResultRoutes.DELETE("/:id", adminOnly, testResultHandler.DeleteTestResult)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}

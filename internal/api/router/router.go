package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
	"github.com/khalilhajj/PfeManagement/internal/api/handler"
	"github.com/khalilhajj/PfeManagement/internal/api/middleware"
	"github.com/khalilhajj/PfeManagement/internal/authz"
	"github.com/khalilhajj/PfeManagement/pkg/jwt"
	"github.com/khalilhajj/PfeManagement/pkg/metrics"
)

const mb = 1 << 20

// Deps infrastructure the router needs besides the handlers. Blacklist and
// Limiter stay nil when Redis is unavailable.
type Deps struct {
	JWT       *jwt.Manager
	Blacklist middleware.Blacklist
	Limiter   middleware.Limiter
	Metrics   *metrics.Metrics
	// MediaRoot is served under /media when files are stored locally.
	MediaRoot string
}

// Setup builds the Gin engine.
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		handler.UseWireFieldNames(v)
	}

	r := gin.New()

	// ── Global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())

	jsonLimit := middleware.BodyLimit(int64(cfg.Server.BodyLimitMB) * mb)
	uploadLimit := middleware.BodyLimit(int64(cfg.Storage.MaxUploadMB+1) * mb)
	authLimit := middleware.RateLimit(deps.Limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	need := middleware.Require

	// ── Health & metrics ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.MediaRoot != "" {
		r.Static("/media", deps.MediaRoot)
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// Auth (public)
		auth := v1.Group("/auth", jsonLimit)
		{
			auth.POST("/login/", authLimit, h.Auth.Login)
			auth.POST("/refresh/", authLimit, h.Auth.RefreshToken)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(deps.JWT, deps.Blacklist))
		{
			authorized.POST("/auth/logout/", h.Auth.Logout)
			authorized.GET("/auth/me/", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/me/", jsonLimit, h.User.UpdateProfile)
			authorized.PUT("/auth/password/", jsonLimit, h.Auth.ChangePassword)

			// Calendar
			authorized.GET("/calendar/me.ics", need(authz.CalendarRead), h.Calendar.Me)

			internship := authorized.Group("/internship")
			{
				// Offers
				internship.POST("/offers/", jsonLimit, need(authz.OfferSubmit), h.Offer.Submit)
				internship.GET("/offers/mine/", need(authz.OfferManage), h.Offer.ListMine)
				internship.GET("/offers/browse/", need(authz.OfferBrowse), h.Offer.Browse)
				internship.GET("/offers/:id/", h.Offer.Get)
				internship.PUT("/offers/:id/", jsonLimit, need(authz.OfferManage), h.Offer.Update)
				internship.DELETE("/offers/:id/", need(authz.OfferManage), h.Offer.Delete)
				internship.POST("/offers/:id/close/", need(authz.OfferClose), h.Offer.Close)
				internship.GET("/admin/offers/", need(authz.OfferReview), h.Offer.ListForReview)
				internship.PATCH("/admin/offers/:id/review/", jsonLimit, need(authz.OfferReview), h.Offer.Review)

				// Interview slots
				internship.GET("/offers/:id/slots/", need(authz.SlotList), h.Slot.List)
				internship.POST("/offers/:id/slots/", jsonLimit, need(authz.SlotManage), h.Slot.Create)
				internship.DELETE("/slots/:id/", need(authz.SlotManage), h.Slot.Delete)

				// Applications
				internship.POST("/apply/", uploadLimit, need(authz.AppCreate), h.Application.Apply)
				internship.GET("/applications/mine/", need(authz.AppCreate), h.Application.ListMine)
				internship.GET("/offers/:id/applications/", need(authz.AppReview), h.Application.ListByOffer)
				internship.GET("/applications/:id/", need(authz.AppRead), h.Application.Get)
				internship.PATCH("/applications/:id/review/", jsonLimit, need(authz.AppReview), h.Application.Review)
				internship.POST("/applications/:id/select-slot/", jsonLimit, need(authz.AppSelect), h.Application.SelectSlot)
				internship.POST("/applications/:id/decision/", jsonLimit, need(authz.AppReview), h.Application.Decide)
				internship.POST("/applications/:id/match/", need(authz.AppMatch), h.Application.CalculateMatch)
				internship.POST("/offers/:id/match/", need(authz.AppMatch), h.Application.BatchCalculateMatches)

				// Internships & supervision
				internship.POST("/create/", uploadLimit, need(authz.InternPropose), h.Internship.Propose)
				internship.GET("/my-internships/", need(authz.InternRead), h.Internship.ListMine)
				internship.GET("/admin/pending/", need(authz.InternReview), h.Internship.ListPending)
				internship.PATCH("/admin/:id/review/", jsonLimit, need(authz.InternReview), h.Internship.Review)
				internship.GET("/teachers/", need(authz.InternRead), h.User.ListTeachers)
				internship.POST("/invite/", jsonLimit, need(authz.InviteSend), h.Internship.InviteTeacher)
				internship.GET("/invitations/", need(authz.InviteList), h.Internship.ListInvitations)
				internship.POST("/invitation/:id/respond/", jsonLimit, need(authz.InviteAnswer), h.Internship.RespondInvitation)

				// Soutenances
				internship.GET("/soutenances/", need(authz.SoutenanceRead), h.Soutenance.List)
				internship.POST("/soutenances/", jsonLimit, need(authz.SoutenancePlan), h.Soutenance.Plan)
				internship.GET("/soutenances/candidates/", need(authz.SoutenancePlan), h.Internship.ListSoutenanceCandidates)
				internship.GET("/soutenances/:id/", need(authz.SoutenanceRead), h.Soutenance.Get)
				internship.PUT("/soutenances/:id/", jsonLimit, need(authz.SoutenancePlan), h.Soutenance.Update)
				internship.DELETE("/soutenances/:id/", need(authz.SoutenancePlan), h.Soutenance.Delete)
				internship.POST("/soutenances/:id/complete/", need(authz.SoutenancePlan), h.Soutenance.Complete)

				// Notifications (every role)
				internship.GET("/notifications/", h.Notification.List)
				internship.GET("/notifications/unread-count/", h.Notification.UnreadCount)
				internship.GET("/notifications/stream/", h.Notification.Stream)
				internship.PATCH("/notifications/:id/read/", h.Notification.MarkRead)
				internship.POST("/notifications/read-all/", h.Notification.MarkAllRead)

				internship.GET("/:id/", need(authz.InternRead), h.Internship.Get)
			}

			reports := authorized.Group("/report/reports")
			{
				reports.POST("/", jsonLimit, need(authz.ReportWrite), h.Report.Create)
				reports.GET("/mine/", need(authz.ReportRead), h.Report.ListMine)
				reports.GET("/versions/pending/", need(authz.ReportReview), h.Report.ListPendingVersions)
				reports.POST("/versions/:id/submit/", need(authz.ReportWrite), h.Report.Submit)
				reports.POST("/versions/:id/review/", jsonLimit, need(authz.ReportReview), h.Report.Review)
				reports.POST("/versions/:id/comment/", jsonLimit, need(authz.ReportReview), h.Report.AddComment)
				reports.POST("/comments/:id/resolve/", need(authz.ReportRead), h.Report.ResolveComment)
				reports.GET("/:id/", need(authz.ReportRead), h.Report.Get)
				reports.DELETE("/:id/", need(authz.ReportWrite), h.Report.Delete)
				reports.POST("/:id/upload-version/", uploadLimit, need(authz.ReportWrite), h.Report.UploadVersion)
				reports.POST("/:id/assign-grade/", jsonLimit, need(authz.ReportGrade), h.Report.AssignGrade)
			}

			admin := authorized.Group("/admin")
			{
				admin.GET("/rooms/", need(authz.RoomRead), h.Room.List)
				admin.GET("/rooms/available/", need(authz.RoomRead), h.Room.ListAvailable)
				admin.POST("/rooms/", jsonLimit, need(authz.RoomManage), h.Room.Create)
				admin.PUT("/rooms/:id/", jsonLimit, need(authz.RoomManage), h.Room.Update)
				admin.DELETE("/rooms/:id/", need(authz.RoomManage), h.Room.Delete)

				admin.GET("/users/", need(authz.UserManage), h.User.ListUsers)
				admin.POST("/users/", jsonLimit, need(authz.UserManage), h.User.CreateUser)
				admin.POST("/users/import/", uploadLimit, need(authz.UserManage), h.User.ImportUsers)
				admin.GET("/users/:id/", need(authz.UserManage), h.User.GetUser)
				admin.PUT("/users/:id/", jsonLimit, need(authz.UserManage), h.User.UpdateUser)
				admin.DELETE("/users/:id/", need(authz.UserManage), h.User.DeleteUser)
				admin.POST("/users/:id/reset-password/", need(authz.UserManage), h.User.ResetPassword)

				admin.GET("/statistics/", need(authz.StatsRead), h.Admin.Statistics)
				admin.GET("/exports/soutenances.xlsx", need(authz.StatsRead), h.Admin.ExportSoutenances)
				admin.GET("/exports/statistics.xlsx", need(authz.StatsRead), h.Admin.ExportStatistics)
			}
		}
	}

	return r
}

package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"cascade-agent/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodGet, Path: "/params", Handler: GetParamsHandler(serverCtx)},
			{Method: http.MethodPatch, Path: "/params", Handler: UpdateParamsHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/status", Handler: StatusHandler(serverCtx)},
			{Method: http.MethodPost, Path: "/agent/pause", Handler: PauseHandler(serverCtx)},
			{Method: http.MethodPost, Path: "/agent/resume", Handler: ResumeHandler(serverCtx)},
			{Method: http.MethodPost, Path: "/agent/cycle", Handler: RunCycleHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/risk/window", Handler: RiskWindowHandler(serverCtx)},
			{Method: http.MethodPost, Path: "/risk/window/reset", Handler: ResetRiskWindowHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/trades", Handler: TradesHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/portfolio/history", Handler: PortfolioHistoryHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/journal", Handler: JournalHandler(serverCtx)},
			{Method: http.MethodGet, Path: "/conversations", Handler: ConversationsHandler(serverCtx)},
		},
		rest.WithPrefix("/api"),
	)
}

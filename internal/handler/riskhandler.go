package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"cascade-agent/internal/logic"
	"cascade-agent/internal/svc"
)

func RiskWindowHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewRiskLogic(r.Context(), svcCtx)
		resp, err := l.Window()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

func ResetRiskWindowHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewRiskLogic(r.Context(), svcCtx)
		resp, err := l.ResetWindow()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"cascade-agent/internal/logic"
	"cascade-agent/internal/svc"
)

const maxPatchBytes = 1 << 20

func GetParamsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewParamsLogic(r.Context(), svcCtx)
		resp, err := l.GetParams()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

// UpdateParamsHandler reads the raw body so absent keys keep their values.
func UpdateParamsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPatchBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = fmt.Errorf("params: request body exceeds %d bytes", tooLarge.Limit)
			}
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		l := logic.NewParamsLogic(r.Context(), svcCtx)
		resp, err := l.UpdateParams(raw)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}

package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// statusCoder 由携带 HTTP 状态码的错误实现（如 lms.StatusError）
type statusCoder interface {
	HTTPStatus() int
}

// ClassifyError 返回用于日志和指标标签的 error_type
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	// Context 先于网络错误判断，超时的 url.Error 同时满足两者
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "network_timeout"
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return "http_status"
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "json_decode_error"
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, redis.Nil) {
		return "not_found"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "network_error"
	}

	return "unknown_error"
}

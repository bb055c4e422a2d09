package connect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"routeget/internal/logger"
	"routeget/internal/model"
)

const jsonrpcVersion = "2.0"

const (
	methodListDataDirectory = "listDataDirectory"
	methodUploadFileToURL   = "uploadFileToUrl"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// RPCError - ошибка, которую вернуло устройство через JSON-RPC.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call выполняет JSON-RPC вызов на устройстве через POST /ws/{id}.
func (c *Client) call(ctx context.Context, dongleID, method string, params, result any) error {
	req := rpcRequest{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}

	var resp rpcResponse
	if err := c.post(ctx, c.baseURL.JoinPath("ws", dongleID), req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result failed: %w", method, err)
	}
	return nil
}

// ListLiveFiles запрашивает у устройства список файлов в каталоге данных.
// Таймаут, сетевая ошибка или ошибка устройства не возвращаются: вызывающая
// сторона получает ok == false и пропускает устройство.
func (c *Client) ListLiveFiles(ctx context.Context, dongleID string) (files []string, ok bool) {
	log := logger.FromContext(ctx).With("op", "listLiveFiles", "dongle", dongleID)

	if c.rpcTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.rpcTimeout)
		defer cancel()
	}

	if err := c.call(ctx, dongleID, methodListDataDirectory, nil, &files); err != nil {
		if IsTimeout(err) {
			err = fmt.Errorf("%w after %v: %w", model.ErrRPCTimeout, c.rpcTimeout, err)
		}
		log.Warn("live listing unavailable", "error", err)
		return nil, false
	}
	return files, true
}

type uploadParams struct {
	Fn      string            `json:"fn"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// UploadFile поручает устройству выгрузить файл fn на подписанный адрес.
func (c *Client) UploadFile(ctx context.Context, dongleID, fn string, u UploadURL) error {
	headers := u.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return c.call(ctx, dongleID, methodUploadFileToURL, uploadParams{Fn: fn, URL: u.URL, Headers: headers}, nil)
}

// RequestUpload запрашивает адреса для файлов и по очереди поручает устройству их выгрузить.
// Первая же ошибка прекращает выгрузку оставшихся файлов этого устройства.
// Возвращает число принятых выгрузок.
func (c *Client) RequestUpload(ctx context.Context, dongleID string, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = model.NormalizeUploadName(name)
	}

	urls, err := c.RequestUploadURLs(ctx, dongleID, paths)
	if err != nil {
		return 0, err
	}

	for i, path := range paths {
		if err := c.UploadFile(ctx, dongleID, path, urls[i]); err != nil {
			return i, fmt.Errorf("upload %q: %w", path, err)
		}
	}
	return len(paths), nil
}

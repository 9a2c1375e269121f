package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/jsonrpc"
	"zohobooks-mcp/server/internal/observability"
)

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes one
// response line per request to out. Messages are handled in arrival order.
// It returns nil when in reaches EOF or ctx is cancelled.
func ServeStdio(ctx context.Context, processor RequestProcessor, in io.Reader, out io.Writer) error {
	log := observability.Logger().Named("stdio")
	enc := json.NewEncoder(out)
	write := func(resp jsonrpc.Response) error { return enc.Encode(resp) }

	lines := make(chan stdioLine)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		r := bufio.NewReaderSize(in, 64*1024)
		for {
			data, tooLong, err := readLine(r, maxBodyBytes)
			data = bytes.TrimSpace(data)
			if len(data) > 0 || tooLong {
				select {
				case lines <- stdioLine{data: data, tooLong: tooLong}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					scanErr <- err
				}
				return
			}
		}
	}()

	log.Info("stdio transport ready")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return errors.Wrap(err, "read stdin")
					}
				default:
				}
				log.Info("stdin closed")
				return nil
			}

			if line.tooLong {
				log.Warn("message too large", zap.Int("limit", maxBodyBytes))
				if werr := write(jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Request too large"}}); werr != nil {
					return errors.Wrap(werr, "write stdout")
				}
				continue
			}

			var req jsonrpc.Request
			if err := json.Unmarshal(line.data, &req); err != nil {
				log.Warn("parse error", zap.Error(err))
				if werr := write(jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}}); werr != nil {
					return errors.Wrap(werr, "write stdout")
				}
				continue
			}

			reqCtx := WithRequestID(ctx, uuid.NewString())
			log.Debug("received request",
				zap.String("method", req.Method),
				zap.Any("id", req.ID),
				zap.String("request_id", GetRequestID(reqCtx)),
			)
			if resp, ok := handle(reqCtx, processor, &req); ok {
				if err := write(resp); err != nil {
					return errors.Wrap(err, "write stdout")
				}
			}
		}
	}
}

type stdioLine struct {
	data    []byte
	tooLong bool
}

// readLine returns the next newline-terminated message. A message longer than
// limit is consumed to its end and reported with tooLong and no data.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(rerr, io.EOF) && (len(line) > 0 || tooLong) {
			return line, tooLong, nil
		}
		return line, tooLong, rerr
	}
}

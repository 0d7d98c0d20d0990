// Package extractor turns correlated exchanges into record events.
package extractor

import (
	"github.com/tjfontaine/record-review-gateway/internal/codec"
	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// Extract interprets an exchange issued by the capturing side for one of the
// record operations. Other exchanges yield a nil event and no error.
// Payloads that do not parse yield a decode *domain.ProtocolError.
func Extract(ex *domain.Exchange) (domain.Event, error) {
	if ex == nil || ex.Request.Direction != domain.Outbound {
		return nil, nil
	}

	switch ex.Request.Method {
	case codec.MethodFetchGameRecord:
		return extractFetch(ex)
	case codec.MethodReadGameRecord:
		req, err := requestPayload(ex)
		if err != nil {
			return nil, err
		}
		return domain.RecordOpened{RecordID: req.GameUUID}, nil
	default:
		return nil, nil
	}
}

func extractFetch(ex *domain.Exchange) (domain.Event, error) {
	env, err := codec.DecodeEnvelope(ex.Response.Content)
	if err != nil {
		return nil, decodeError("response envelope", ex.Response, err)
	}
	rec, err := codec.DecodeGameRecord(env.Payload)
	if err != nil {
		return nil, decodeError("record result", ex.Response, err)
	}

	if rec.ErrorCode != 0 {
		req, err := requestPayload(ex)
		if err != nil {
			return nil, err
		}
		return domain.FetchFailed{RecordID: req.GameUUID, ErrorCode: rec.ErrorCode}, nil
	}

	if rec.UUID == "" {
		return nil, decodeError("record result without head uuid", ex.Response, nil)
	}
	return domain.FetchSucceeded{RecordID: rec.UUID, Raw: env.Payload}, nil
}

// requestPayload recovers the record request from the pending entry's content.
func requestPayload(ex *domain.Exchange) (*codec.GameRecordRequest, error) {
	reqFrame := domain.Frame{Direction: ex.Request.Direction, Content: ex.Request.Content}

	env, err := codec.DecodeEnvelope(ex.Request.Content)
	if err != nil {
		return nil, decodeError("request envelope", reqFrame, err)
	}
	if env.Method != ex.Request.Method {
		return nil, decodeError("request method "+env.Method+" does not match "+ex.Request.Method, reqFrame, nil)
	}
	req, err := codec.DecodeGameRecordRequest(env.Payload)
	if err != nil {
		return nil, decodeError("record request", reqFrame, err)
	}
	if req.GameUUID == "" {
		return nil, decodeError("record request without game uuid", reqFrame, nil)
	}
	return req, nil
}

func decodeError(msg string, f domain.Frame, cause error) error {
	pe := domain.DecodeError(msg, cause)
	pe.Direction = f.Direction
	pe.Content = f.Content
	return pe
}

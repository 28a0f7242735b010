package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/specforge/specforge/internal/config"
)

const (
	synthesisURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	resourceID   = "volc.service_type.10029"
)

// Audio is a finished synthesis result.
type Audio struct {
	Data     []byte
	Format   string
	Duration int64
}

// Service narrates assistant turns through the synthesis websocket.
type Service struct {
	cfg    config.SpeechConfig
	dialer *websocket.Dialer
}

// NewService builds the speech client from configuration.
func NewService(cfg config.SpeechConfig) *Service {
	return &Service{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

type synthesisRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string `json:"speaker"`
		Text        string `json:"text"`
		Language    string `json:"language,omitempty"`
		AudioParams struct {
			Format      string  `json:"format"`
			SampleRate  int     `json:"sample_rate"`
			SpeedRatio  float32 `json:"speed_ratio,omitempty"`
			VolumeRatio float32 `json:"volume_ratio,omitempty"`
		} `json:"audio_params"`
	} `json:"req_params"`
}

type synthesisResponse struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// Synthesize converts a short text into mp3 audio. The input should
// already be the derived spoken summary, not a full assistant turn.
func (s *Service) Synthesize(ctx context.Context, text string) (*Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("synthesis text is empty")
	}
	if !s.cfg.Enabled {
		return nil, fmt.Errorf("speech synthesis is not configured")
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Timeout)*time.Second)
		defer cancel()
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", s.cfg.AppID)
	header.Set("X-Api-Access-Key", s.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", uuid.NewString())

	conn, _, err := s.dialer.DialContext(ctx, synthesisURL, header)
	if err != nil {
		return nil, fmt.Errorf("connect synthesis endpoint: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(s.buildRequest(text))
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(newRequestFrame(payload))); err != nil {
		return nil, fmt.Errorf("send synthesis request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	var audio bytes.Buffer
	var duration int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read synthesis response: %w", err)
		}
		f, err := decodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode synthesis frame: %w", err)
		}

		switch f.Header.Type {
		case typeErrorMessage:
			msg, _ := decompressPayload(f.Payload, f.Header.Compression)
			return nil, fmt.Errorf("synthesis error %d: %s", f.ErrorCode, string(msg))

		case typeAudioOnlyResponse:
			chunk, err := decompressPayload(f.Payload, f.Header.Compression)
			if err != nil {
				return nil, fmt.Errorf("decompress audio chunk: %w", err)
			}
			audio.Write(chunk)

		case typeFullServerResponse:
			payload, err := decompressPayload(f.Payload, f.Header.Compression)
			if err != nil {
				return nil, fmt.Errorf("decompress response payload: %w", err)
			}
			var resp synthesisResponse
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &resp); err != nil {
					log.Printf("[speech] unparseable response payload: %v", err)
				} else {
					if resp.Code != 0 && resp.Code != 3000 {
						return nil, fmt.Errorf("synthesis error %d: %s", resp.Code, resp.Message)
					}
					if resp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(resp.Data)
						if err != nil {
							return nil, fmt.Errorf("decode audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
					if ms := resp.Addition.Duration; ms != "" {
						fmt.Sscanf(ms, "%d", &duration)
					}
				}
			}
			if f.isLast() || resp.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, fmt.Errorf("synthesis returned no audio")
				}
				return &Audio{Data: audio.Bytes(), Format: "mp3", Duration: duration}, nil
			}

		default:
			log.Printf("[speech] unexpected frame type %d", f.Header.Type)
		}

		if f.isLast() {
			if audio.Len() == 0 {
				return nil, fmt.Errorf("synthesis returned no audio")
			}
			return &Audio{Data: audio.Bytes(), Format: "mp3", Duration: duration}, nil
		}
	}
}

func (s *Service) buildRequest(text string) *synthesisRequest {
	req := &synthesisRequest{}
	req.User.UID = uuid.NewString()
	req.ReqParams.Speaker = s.cfg.Voice
	req.ReqParams.Text = text
	req.ReqParams.Language = s.cfg.Language
	req.ReqParams.AudioParams.Format = "mp3"
	req.ReqParams.AudioParams.SampleRate = 24000
	if s.cfg.Speed > 0 && s.cfg.Speed != 1.0 {
		req.ReqParams.AudioParams.SpeedRatio = s.cfg.Speed
	}
	if s.cfg.Volume > 0 && s.cfg.Volume != 1.0 {
		req.ReqParams.AudioParams.VolumeRatio = s.cfg.Volume
	}
	return req
}

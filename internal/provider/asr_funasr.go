package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

// FunASRProvider talks to a FunASR-compatible word-level recognition
// service over HTTP multipart upload, grounded on
// app/services/funasr_service.py and the handle_audio_parallel multipart
// pattern in app/api/endpoints.py.
type FunASRProvider struct {
	baseURL string
	client  *http.Client
}

func NewFunASRProvider(baseURL string) *FunASRProvider {
	return &FunASRProvider{baseURL: baseURL, client: &http.Client{Timeout: 2 * time.Hour}}
}

func (p *FunASRProvider) Name() string        { return "funasr" }
func (p *FunASRProvider) RequiresURL() bool    { return false }

func (p *FunASRProvider) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.UpstreamUnavailable, "funasr not reachable")
	}
	defer resp.Body.Close()
	return nil
}

type funasrWord struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id"`
}

type funasrResponse struct {
	Text  string       `json:"text"`
	Words []funasrWord `json:"words"`
}

func (p *FunASRProvider) Recognize(ctx context.Context, audio []byte, opts ASROptions) (string, []model.TranscriptSegment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("hotword", opts.HotwordBlob); err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "build multipart request")
	}
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "build multipart request")
	}
	if _, err := fw.Write(audio); err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "write audio payload")
	}
	if err := mw.Close(); err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe/word-level", &body)
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return p.doRequest(req)
}

func (p *FunASRProvider) RecognizeURL(ctx context.Context, url string, opts ASROptions) (string, []model.TranscriptSegment, error) {
	form := make(map[string]string)
	form["audio_url"] = url
	form["hotword"] = opts.HotwordBlob

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range form {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe/word-level", &body)
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return p.doRequest(req)
}

func (p *FunASRProvider) doRequest(req *http.Request) (string, []model.TranscriptSegment, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return "", nil, apperrors.Wrap(ctxErr, apperrors.Cancelled, "funasr call cancelled")
		}
		return "", nil, apperrors.Wrap(err, apperrors.UpstreamTimeout, "funasr request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", nil, apperrors.Newf(apperrors.UpstreamUnavailable, "funasr returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return "", nil, apperrors.Newf(apperrors.Internal, "funasr error %d: %s", resp.StatusCode, string(b))
	}

	var out funasrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.Internal, "decode funasr response")
	}

	segs := make([]model.TranscriptSegment, 0, len(out.Words))
	var full bytes.Buffer
	for i, w := range out.Words {
		if i > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(w.Text)
		segs = append(segs, model.TranscriptSegment{
			Text:      w.Text,
			StartS:    w.Start,
			EndS:      w.End,
			SpeakerID: speakerLabelToRawID(w.SpeakerID),
		})
	}
	fullText := out.Text
	if fullText == "" {
		fullText = full.String()
	}
	return fullText, segs, nil
}

// speakerLabelToRawID parses a "SPEAKER_01"-style label into its numeric
// suffix, mirroring app/api/endpoints.py's speaker_str_to_int. Unlabeled
// words get -1, which the diarization normalizer treats as "needs a
// diarizer pass".
func speakerLabelToRawID(label string) int {
	end := len(label)
	start := end
	for start > 0 && label[start-1] >= '0' && label[start-1] <= '9' {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(label[start:end])
	if err != nil {
		return -1
	}
	return n
}

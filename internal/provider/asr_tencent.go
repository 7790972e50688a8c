package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

// TencentASRProvider models a cloud ASR backend whose recording-file
// recognition API only accepts a publicly reachable URL, never raw bytes
// (app/services/tencent_asr.py: "CreateRecTask only accepts URL"). It
// submits a task then polls for completion.
type TencentASRProvider struct {
	baseURL string
	client  *http.Client
}

func NewTencentASRProvider(baseURL string) *TencentASRProvider {
	return &TencentASRProvider{baseURL: baseURL, client: &http.Client{Timeout: 2 * time.Hour}}
}

func (p *TencentASRProvider) Name() string     { return "tencent" }
func (p *TencentASRProvider) RequiresURL() bool { return true }

func (p *TencentASRProvider) Ready(ctx context.Context) error {
	if p.baseURL == "" {
		return apperrors.New(apperrors.UpstreamUnavailable, "tencent asr not configured")
	}
	return nil
}

// Recognize rejects local bytes with UNSUPPORTED_FORMAT rather than
// silently falling back, per spec.md §4.6.
func (p *TencentASRProvider) Recognize(ctx context.Context, audio []byte, opts ASROptions) (string, []model.TranscriptSegment, error) {
	return "", nil, apperrors.New(apperrors.UnsupportedFormat, "tencent asr requires a publicly reachable URL, not raw bytes")
}

type tencentCreateTaskResp struct {
	Data struct {
		TaskID int `json:"TaskId"`
	} `json:"Data"`
}

type tencentTaskStatusResp struct {
	Data struct {
		Status int    `json:"Status"`
		Result string `json:"Result"`
	} `json:"Data"`
}

func (p *TencentASRProvider) RecognizeURL(ctx context.Context, audioURL string, opts ASROptions) (string, []model.TranscriptSegment, error) {
	taskID, err := p.createTask(ctx, audioURL)
	if err != nil {
		return "", nil, err
	}
	result, err := p.pollTask(ctx, taskID)
	if err != nil {
		return "", nil, err
	}
	return parseTencentResult(result)
}

func (p *TencentASRProvider) createTask(ctx context.Context, audioURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/CreateRecTask", nil)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "build create-task request")
	}
	q := req.URL.Query()
	q.Set("url", audioURL)
	q.Set("speaker_diarization", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.UpstreamTimeout, "create-task request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, apperrors.Newf(apperrors.UpstreamUnavailable, "tencent asr returned %d", resp.StatusCode)
	}

	var out tencentCreateTaskResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "decode create-task response")
	}
	if out.Data.TaskID == 0 {
		return 0, apperrors.New(apperrors.Internal, "tencent asr did not return a TaskId")
	}
	return out.Data.TaskID, nil
}

func (p *TencentASRProvider) pollTask(ctx context.Context, taskID int) (string, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	deadline := time.Now().Add(5 * time.Minute)

	for {
		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "polling cancelled")
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return "", apperrors.New(apperrors.UpstreamTimeout, "tencent asr task poll timed out")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/DescribeTaskStatus", nil)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.Internal, "build poll request")
		}
		q := req.URL.Query()
		q.Set("task_id", strconv.Itoa(taskID))
		req.URL.RawQuery = q.Encode()

		resp, err := p.client.Do(req)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.UpstreamTimeout, "poll request failed")
		}
		var out tencentTaskStatusResp
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if decodeErr != nil {
			return "", apperrors.Wrap(decodeErr, apperrors.Internal, "decode poll response")
		}

		switch out.Data.Status {
		case 2: // done
			return out.Data.Result, nil
		case 3: // failed
			return "", apperrors.New(apperrors.UpstreamUnavailable, "tencent asr task failed")
		}
	}
}

var speakerTagRE = regexp.MustCompile(`\[(\d+):(\d+(?:\.\d+)?),(\d+(?:\.\d+)?)\]`)

// parseTencentResult is a best-effort parser for the sentence-level
// transcript Tencent returns; without a bracketed speaker/timing tag the
// whole result becomes a single untimed segment.
func parseTencentResult(result string) (string, []model.TranscriptSegment, error) {
	if result == "" {
		return "", nil, nil
	}
	matches := speakerTagRE.FindAllStringSubmatchIndex(result, -1)
	if len(matches) == 0 {
		return result, []model.TranscriptSegment{{Text: result, SpeakerID: 0}}, nil
	}

	var segs []model.TranscriptSegment
	for i, m := range matches {
		speaker, _ := strconv.Atoi(result[m[2]:m[3]])
		start, _ := strconv.ParseFloat(result[m[4]:m[5]], 64)
		end, _ := strconv.ParseFloat(result[m[6]:m[7]], 64)
		textStart := m[1]
		textEnd := len(result)
		if i+1 < len(matches) {
			textEnd = matches[i+1][0]
		}
		text := result[textStart:textEnd]
		segs = append(segs, model.TranscriptSegment{
			Text:      text,
			StartS:    start,
			EndS:      end,
			SpeakerID: speaker,
		})
	}
	return result, segs, nil
}

package volctts

import "encoding/json"

// Namespace 双向 TTS 服务命名空间
const Namespace = "BidirectionalTTS"

// emptyPayload StartConnection / FinishConnection / FinishSession 的载荷
var emptyPayload = []byte("{}")

// ================== 请求载荷 ==================

// audioParams 固定音频参数: PCM16LE @ 16 kHz
type audioParams struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

// reqParams 合成请求参数，speaker / text 为空时省略
type reqParams struct {
	Speaker     string      `json:"speaker,omitempty"`
	Text        string      `json:"text,omitempty"`
	AudioParams audioParams `json:"audio_params"`
}

// sessionPayload StartSession / TaskRequest 的 JSON 载荷
type sessionPayload struct {
	Event     int32     `json:"event"`
	Namespace string    `json:"namespace"`
	ReqParams reqParams `json:"req_params"`
}

// buildSessionPayload 构建 StartSession / TaskRequest 载荷
func buildSessionPayload(event int32, speaker, text string) []byte {
	payload, _ := json.Marshal(&sessionPayload{
		Event:     event,
		Namespace: Namespace,
		ReqParams: reqParams{
			Speaker: speaker,
			Text:    text,
			AudioParams: audioParams{
				Format:     "pcm",
				SampleRate: 16000,
			},
		},
	})
	return payload
}

package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// PushNotifier posts ride events to an external driver-app backend. It is
// the fallback when no driver session is connected: real-time delivery is
// ephemeral, but a push provider can still wake the driver app.
type PushNotifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewPushNotifier(endpoint, key string) *PushNotifier {
	return &PushNotifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

// Notify is best-effort like everything else in this package.
func (p *PushNotifier) Notify(event string, payload any) error {
	body := map[string]any{"event": event, "data": payload}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.Key != "" {
		req.Header.Set("Authorization", "Bearer "+p.Key)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"eventregis/internal/auth"
)

// Fires concurrent registration attempts at one event and reports how many
// were admitted vs rejected. With capacity C and attempts N > C, exactly C
// must succeed and the rest must be rejected with REGISTRATION_CLOSED.

var (
	baseURL  = flag.String("base", "http://localhost:8080", "server base URL")
	eventID  = flag.Int64("event", 0, "event id to register against")
	attempts = flag.Int("n", 50, "number of concurrent attempts")
)

func publicTokenIssuer(base string) auth.IssueFunc {
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/auth/token", nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		var envelope struct {
			Data struct {
				Token string `json:"token"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return "", err
		}
		if envelope.Data.Token == "" {
			return "", fmt.Errorf("token endpoint returned no token")
		}
		return envelope.Data.Token, nil
	}
}

func register(ctx context.Context, cache *auth.Cache, base string, eventID int64, n int) (int, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("full_name", fmt.Sprintf("Load Tester %03d", n))
	_ = w.WriteField("phone", fmt.Sprintf("08%08d", n))
	_ = w.WriteField("food_type", "normal")
	_ = w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/events/%d/register", base, eventID), &body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	token, err := cache.Token(ctx)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)
	code := ""
	if envelope.Error != nil {
		code = envelope.Error.Code
	}
	return resp.StatusCode, code, nil
}

func main() {
	flag.Parse()
	if *eventID == 0 {
		log.Fatal("-event is required")
	}

	ctx := context.Background()
	cache := auth.NewCache(nil, publicTokenIssuer(*baseURL))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		closed   int
		other    int
	)

	start := time.Now()
	for i := 0; i < *attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status, code, err := register(ctx, cache, *baseURL, *eventID, n)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other++
				fmt.Printf("  attempt %03d  error: %v\n", n, err)
			case status == http.StatusCreated:
				admitted++
			case code == "REGISTRATION_CLOSED":
				closed++
			default:
				other++
				fmt.Printf("  attempt %03d  status=%d code=%s\n", n, status, code)
			}
		}(i)
	}
	wg.Wait()

	fmt.Println("Attempts:  ", *attempts)
	fmt.Println("Admitted:  ", admitted)
	fmt.Println("Closed:    ", closed)
	fmt.Println("Other:     ", other)
	fmt.Println("Duration:  ", time.Since(start))
}

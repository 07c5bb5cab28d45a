// stress_tool 并发兑换压测：N 个用户同时兑换一张限量券，检查成功数不超过 usageLimit。
// 服务端需调高限流，例如 RATELIMIT_RPS=100000 RATELIMIT_BURST=100000。
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"coupon_subscription/pkg/utils"

	"github.com/google/uuid"
)

var httpClient *http.Client

func init() {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the server")
	users := flag.Int("users", 1000, "concurrent users")
	limit := flag.Int("limit", 5, "coupon usage limit")
	flag.Parse()

	admin, err := utils.GenerateToken(*secret, "stress-admin", "admin@stress.local", "admin", time.Hour)
	if err != nil {
		fmt.Println("生成管理员令牌失败:", err)
		os.Exit(1)
	}

	// 1. 创建限量券 (管理员操作)
	code := "STRESS" + uuid.New().String()[:8]
	couponID, err := createCoupon(*baseURL, admin, code, *limit)
	if err != nil {
		fmt.Println("创建优惠券失败:", err)
		os.Exit(1)
	}
	fmt.Printf("开始压测：模拟 %d 个用户兑换 %d 张券 (%s)...\n", *users, *limit, code)

	// 2. 并发兑换
	var (
		wg       sync.WaitGroup
		success  atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
	)
	start := time.Now()
	for i := 1; i <= *users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := utils.GenerateToken(*secret, fmt.Sprintf("stress-user-%d", i), "", "user", time.Hour)
			if err != nil {
				failed.Add(1)
				return
			}
			switch redeem(*baseURL, token, code) {
			case 0:
				success.Add(1)
			case 20004:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	duration := time.Since(start)

	// 3. 核对 usedCount
	usedCount, err := fetchUsedCount(*baseURL, admin, couponID)
	if err != nil {
		fmt.Println("查询优惠券失败:", err)
	}

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d, QPS: %.2f\n", *users, float64(*users)/duration.Seconds())
	fmt.Printf("兑换成功: %d (上限: %d)\n", success.Load(), *limit)
	fmt.Printf("规则拒绝: %d, 请求失败: %d\n", rejected.Load(), failed.Load())
	fmt.Printf("usedCount: %d\n", usedCount)
	fmt.Println("--------------------------------------------------")

	if success.Load() > int64(*limit) || usedCount > *limit {
		fmt.Println("超发：成功次数超过 usageLimit")
		os.Exit(1)
	}
}

func do(method, url, token string, body interface{}) (*envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return &env, nil
}

func createCoupon(baseURL, token, code string, limit int) (string, error) {
	env, err := do(http.MethodPost, baseURL+"/admin/coupons", token, map[string]interface{}{
		"code":        code,
		"description": "stress test",
		"type":        "fixed",
		"value":       100,
		"usageLimit":  limit,
		"validFrom":   time.Now().Add(-time.Minute).Format(time.RFC3339),
		"validUntil":  time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", fmt.Errorf("code %d: %s", env.Code, env.Message)
	}
	var coupon struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &coupon); err != nil {
		return "", err
	}
	return coupon.ID, nil
}

// redeem 返回业务码，请求失败时返回 -1
func redeem(baseURL, token, code string) int {
	env, err := do(http.MethodPost, baseURL+"/redemptions", token, map[string]string{
		"code":     code,
		"planType": "pro",
	})
	if err != nil {
		return -1
	}
	return env.Code
}

func fetchUsedCount(baseURL, token, couponID string) (int, error) {
	env, err := do(http.MethodGet, baseURL+"/admin/coupons/"+couponID, token, nil)
	if err != nil {
		return 0, err
	}
	var coupon struct {
		UsedCount int `json:"usedCount"`
	}
	if err := json.Unmarshal(env.Data, &coupon); err != nil {
		return 0, err
	}
	return coupon.UsedCount, nil
}

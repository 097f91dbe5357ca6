package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestFail_UsesDefaultMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Fail(c, CodeInsufficientFunds)

	body := decode(t, rec)
	if body["code"].(float64) != CodeInsufficientFunds || body["message"] != "余额不足" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("error responses must omit data")
	}
}

func TestMessage_UnknownCode(t *testing.T) {
	if got := Message(9999); got != Message(CodeServerError) {
		t.Fatalf("expected server error message, got %q", got)
	}
}

func TestSuccessPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	SuccessPage(c, []int{1, 2}, 7, 2, 2)

	data := decode(t, rec)["data"].(map[string]interface{})
	if data["total"].(float64) != 7 || data["page"].(float64) != 2 || len(data["list"].([]interface{})) != 2 {
		t.Fatalf("unexpected page: %v", data)
	}
}

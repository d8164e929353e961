// internal/handlers/testenv_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmatrix/gmatrix-backend/internal/config"
	"github.com/gmatrix/gmatrix-backend/internal/models"
	"github.com/gmatrix/gmatrix-backend/internal/services"
)

// stubModel scripts the vision model's reply for analyze tests.
type stubModel struct {
	reply string
	err   error
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// testEnv wires the handlers under test into a bare Gin engine with a fixed
// registered identity, bypassing token parsing.
type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	user   *models.User
}

func newTestEnv(t *testing.T, model llms.Model) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One in-memory database per test; a second pooled connection would
	// see an empty schema.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.StoreEntry{},
		&models.Vote{},
		&models.UserProfile{},
		&models.AdminRole{},
		&models.AuditLog{},
		&models.AdminNotification{},
	))

	cfg := &config.Config{Environment: "development"}
	notificationService := services.NewNotificationService(db, cfg)
	storageService, err := services.NewStorageService(cfg)
	require.NoError(t, err)
	productService := services.NewProductService(db)
	gamificationService := services.NewGamificationService(db, config.GamificationConfig{BasePoints: 10})
	voteService := services.NewVoteService(db, gamificationService, nil)
	visionService := services.NewVisionServiceWithModel(model, time.Second)

	user := &models.User{
		Username: "handler_tester",
		Email:    "tester@example.com",
		UserType: models.UserTypeRegistered,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("Sup3r-secret!"))
	require.NoError(t, db.Create(user).Error)

	identify := func(c *gin.Context) {
		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("user_type", string(user.UserType))
	}

	productHandler := NewProductHandler(productService, storageService, notificationService)
	voteHandler := NewVoteHandler(voteService, productService)
	analyzeHandler := NewAnalyzeHandler(visionService, productService, storageService)

	r := gin.New()
	v1 := r.Group("/v1", identify)
	v1.POST("/analyze", analyzeHandler.AnalyzePhoto)
	v1.POST("/products", productHandler.CreateProduct)
	v1.GET("/products/:id/image-url", productHandler.GetImageURL)
	v1.POST("/products/:id/report", productHandler.ReportProduct)
	v1.POST("/products/:id/votes", voteHandler.SubmitVote)

	return &testEnv{db: db, router: r, user: user}
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// postPhoto submits a multipart "photo" field the way a camera upload does.
func (e *testEnv) postPhoto(t *testing.T, path string, photo []byte, mimeType string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="shot.jpg"`)
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(photo)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 32)...)
}

package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Luciuswang/douyin-treasure/api"
	"github.com/Luciuswang/douyin-treasure/api/scheduler"
	"github.com/Luciuswang/douyin-treasure/config"
	"github.com/Luciuswang/douyin-treasure/databases"
	"github.com/Luciuswang/douyin-treasure/engine"
	"github.com/Luciuswang/douyin-treasure/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	treasureDB := databases.NewTreasureDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)
	gameEngine := engine.New(treasureDB, userDB)

	t := Treasure{DB: treasureDB, UDB: userDB, Engine: gameEngine}
	u := User{DB: userDB}
	mod := Moderation{MDB: databases.NewModeratorDatabase(a.dbHelper), TDB: treasureDB}
	uploadHandler := UploadHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/treasure", api.Middleware(http.HandlerFunc(t.CreateTreasureHandler))).Methods("POST")
	apiCreate.Handle("/treasure/{treasure_id}", api.Middleware(http.HandlerFunc(t.TreasureByIDHandler))).Methods("GET")
	apiCreate.Handle("/treasure/{treasure_id}/discover", api.Middleware(http.HandlerFunc(t.DiscoverTreasureHandler))).Methods("POST")
	apiCreate.Handle("/treasure/{treasure_id}/like", api.Middleware(http.HandlerFunc(t.LikeTreasureHandler))).Methods("POST")
	apiCreate.Handle("/treasure/{treasure_id}/moderation", http.HandlerFunc(mod.UpdateModerationHandler)).Methods("PUT")

	apiCreate.Handle("/treasures/nearby", api.Middleware(http.HandlerFunc(t.NearbyTreasuresHandler))).Methods("GET")
	apiCreate.Handle("/treasures/trending", api.Middleware(http.HandlerFunc(t.TrendingTreasuresHandler))).Methods("GET")
	apiCreate.Handle("/treasures/creator/{user_id}", api.Middleware(http.HandlerFunc(t.TreasuresByCreatorHandler))).Methods("GET")

	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/level", api.Middleware(http.HandlerFunc(u.UserLevelHandler))).Methods("GET")

	apiCreate.Handle("/moderation/login", http.HandlerFunc(mod.ModerationLoginHandler)).Methods("POST")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(uploadHandler.GenerateSignature))).Methods("POST")

	r.HandleFunc("/ws/events", HandleEventsWebSocket)

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("douyin-treasure has connected to the database")

	// background expiry sweep
	a.Scheduler = scheduler.NewScheduler(
		databases.NewTreasureDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

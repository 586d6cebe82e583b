package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/parleysocial/parley/activities"
	"github.com/parleysocial/parley/controllers"
	"github.com/parleysocial/parley/keystore"
	mware "github.com/parleysocial/parley/middleware"
	"github.com/parleysocial/parley/store"
	"github.com/parleysocial/parley/subscriptions"
	"github.com/parleysocial/parley/tasks"
)

func main() {
	configPath := "parley.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	conf, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	keys, err := keystore.NewStore(conf.Server.PrivateKey, conf.Server.PublicKey)
	if err != nil {
		log.Fatalf("could not load keys: %v", err)
	}

	policy := activities.Policy{
		Scheme:   conf.Server.Scheme,
		Hostname: conf.Server.Hostname,
		Allowed:  conf.Federation.AllowedInstances,
		Blocked:  conf.Federation.BlockedInstances,
	}

	st := store.NewMemStore()
	followers := subscriptions.NewMemManager()
	queue := tasks.NewMemoryQueue()
	storage := tasks.NewMemoryStorage()
	keyID := conf.Server.Scheme + "://" + conf.Server.Hostname + "/actor#main-key"

	inbox := controllers.NewInbox(
		policy, st, followers, queue, storage,
		keys, keyID, http.DefaultClient, conf.FetchLimit(),
	)
	actor := controllers.NewActor(conf.Server.Scheme, conf.Server.Hostname, st, keys)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mware.ActivityPubHeaders)

	r.Post("/inbox", inbox.ServeHTTP)
	r.Get("/u/{name}", actor.ServeHTTP)
	r.Get("/c/{name}", actor.ServeHTTP)

	go runDeliveryWorker(queue, storage)

	err = http.ListenAndServe(":3000", r)
	if err != nil {
		panic(err)
	}
}

// runDeliveryWorker drains the delivery queue. Failed deliveries are
// logged and marked finished; redelivery is the peer's problem once we
// have made the attempt the transport contract requires.
func runDeliveryWorker(queue tasks.Queuer, storage tasks.Storer) {
	for {
		taskID := queue.Working()
		task, ok := storage.Get(taskID)
		if !ok {
			log.Printf("no stored task for %s\n", taskID)
			continue
		}
		if err := task.Run(); err != nil {
			log.Printf("delivery %s failed: %v\n", taskID, err)
		}
		queue.Finish(taskID)
	}
}

// Package api serves the value held by deployed SimpleStorage contracts over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/flashbots/simple-storage/framework"
	"github.com/flashbots/simple-storage/simplestorage"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	DefaultListenAddr = "localhost:18550"

	pathStorage = "/storage/{address}"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var (
	errServerAlreadyRunning = errors.New("server already running")
	errInvalidAddress       = errors.New("invalid address")
	errContractNotFound     = errors.New("contract not found")
	errRetrieveFailed       = errors.New("failed to retrieve value")
)

// StorageService exposes retrieve() of SimpleStorage instances on the
// framework's network.
type StorageService struct {
	listenAddr string
	log        *logrus.Entry
	fr         *framework.Framework
	srv        *http.Server
}

func NewStorageService(log *logrus.Entry, fr *framework.Framework, listenAddr string) (*StorageService, error) {
	return &StorageService{
		listenAddr: listenAddr,
		log:        log,
		fr:         fr,
	}, nil
}

// StartHTTPServer serves until ctx is done, then shuts the server down and
// returns nil.
func (m *StorageService) StartHTTPServer(ctx context.Context) error {
	if m.srv != nil {
		return errServerAlreadyRunning
	}

	srv := &http.Server{
		Addr:              m.listenAddr,
		Handler:           m.getRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	m.srv = srv

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			m.log.WithError(err).Warn("server shutdown")
		}
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (m *StorageService) getRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", m.handleRoot)
	r.HandleFunc(pathStorage, m.handleGetStorage).Methods(http.MethodGet)

	r.Use(mux.CORSMethodMiddleware(r))
	loggedRouter := httplogger.LoggingMiddlewareLogrus(m.log, r)
	return loggedRouter
}

func (m *StorageService) handleGetStorage(w http.ResponseWriter, req *http.Request) {
	log := m.log.WithField("method", "getStorage")

	addrHex := mux.Vars(req)["address"]
	if !common.IsHexAddress(addrHex) || len(addrHex) != 42 {
		m.respondError(w, http.StatusBadRequest, errInvalidAddress.Error())
		return
	}
	addr := common.HexToAddress(addrHex)
	log = log.WithField("address", addr.Hex())

	simpleStorage, err := simplestorage.At(m.fr, addr)
	if err != nil {
		log.WithError(err).Error("failed to bind contract")
		m.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	value, err := simpleStorage.Retrieve(req.Context())
	if errors.Is(err, bind.ErrNoCode) {
		m.respondError(w, http.StatusNotFound, errContractNotFound.Error())
		return
	}
	if err != nil {
		log.WithError(err).Warn("retrieve failed")
		m.respondError(w, http.StatusInternalServerError, errRetrieveFailed.Error())
		return
	}

	m.respondOK(w, &storageResp{
		Address: addr.Hex(),
		Value:   value.Dec(),
	})
}

func (m *StorageService) handleRoot(w http.ResponseWriter, req *http.Request) {
	m.respondOK(w, nilResponse)
}

func (m *StorageService) respondError(w http.ResponseWriter, code int, message string) {
	m.writeJSON(w, code, httpErrorResp{Code: code, Message: message})
}

func (m *StorageService) respondOK(w http.ResponseWriter, response any) {
	m.writeJSON(w, http.StatusOK, response)
}

// writeJSON encodes before writing the header so an encoding failure can
// still become a 500.
func (m *StorageService) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		m.log.WithError(err).WithField("code", code).Error("encoding response")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		m.log.WithError(err).Debug("writing response")
	}
}

type httpErrorResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type storageResp struct {
	Address string `json:"address"`
	Value   string `json:"value"` // decimal, uint256 does not fit a JSON number
}

var nilResponse = struct{}{}

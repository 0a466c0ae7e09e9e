// Package monitoring turns a running benchmark or simulation into a small
// web server that reports the state of its event queues.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/eventq/monitoring/web"
	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/id"
	"github.com/sarchlab/eventq/sim/timing"
)

// An ObservedQueue is a queue that the monitor reads from the server
// goroutines. It must be safe for concurrent use, for example an
// eventqueue.Synchronized.
type ObservedQueue interface {
	Len() int
}

type namedQueue struct {
	name  string
	queue ObservedQueue
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine      timing.Engine
	portNumber  int
	openBrowser bool
	ids         id.IDGenerator

	queuesLock sync.Mutex
	queues     []namedQueue

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	registry *prometheus.Registry
	server   *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		ids:      id.NewIDGenerator(),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(&queueCollector{monitor: m})

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		log.Warnf("port number %d is not allowed for the monitoring "+
			"server, using a random port instead", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterEngine registers the engine that is used in the simulation. The
// queues of a SerialEngine are registered as "primary" and "secondary".
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e

	withQueues, ok := e.(interface {
		Queues() (primary, secondary timing.EventQueue)
	})
	if !ok {
		return
	}

	primary, secondary := withQueues.Queues()
	m.RegisterQueue(timing.PrimaryQueueName, primary)
	m.RegisterQueue(timing.SecondaryQueueName, secondary)
}

// RegisterQueue registers a queue to be monitored under a unique name.
func (m *Monitor) RegisterQueue(name string, q ObservedQueue) {
	m.queuesLock.Lock()
	defer m.queuesLock.Unlock()

	for _, nq := range m.queues {
		if nq.name == name {
			log.Panicf("queue %s is already monitored", name)
		}
	}

	m.queues = append(m.queues, namedQueue{name: name, queue: q})
}

// UnregisterQueue stops monitoring the named queue.
func (m *Monitor) UnregisterQueue(name string) {
	m.queuesLock.Lock()
	defer m.queuesLock.Unlock()

	kept := m.queues[:0]
	for _, nq := range m.queues {
		if nq.name != name {
			kept = append(kept, nq)
		}
	}

	m.queues = kept
}

func (m *Monitor) snapshotQueues() []namedQueue {
	m.queuesLock.Lock()
	defer m.queuesLock.Unlock()

	queues := make([]namedQueue, len(m.queues))
	copy(queues, m.queues)

	sort.Slice(queues, func(i, j int) bool {
		return queues[i].name < queues[j].name
	})

	return queues
}

func (m *Monitor) findQueue(name string) (ObservedQueue, bool) {
	for _, nq := range m.snapshotQueues() {
		if nq.name == name {
			return nq.queue, true
		}
	}

	return nil, false
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/queues", m.listQueues)
	r.HandleFunc("/api/queue/{name}", m.queueDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.Assets()))

	return r
}

// StartServer starts the monitor as a web server and returns the URL it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", errors.Wrap(err, "cannot listen for the monitor")
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring with %s\n", url)

	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("monitor server stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.WithError(err).Warn("cannot open the monitor in a browser")
		}
	}

	return url, nil
}

// StopServer gracefully stops a server started with StartServer.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) engineOr503(w http.ResponseWriter) timing.Engine {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
	}

	return m.engine
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr503(w)
	if e == nil {
		return
	}

	e.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr503(w)
	if e == nil {
		return
	}

	e.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	e := m.engineOr503(w)
	if e == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%.10f}", e.Now())
}

type queueRsp struct {
	Name  string                  `json:"name"`
	Len   int                     `json:"len"`
	Stats *eventqueue.BucketStats `json:"stats,omitempty"`
}

func describeQueue(name string, q ObservedQueue) queueRsp {
	rsp := queueRsp{Name: name, Len: q.Len()}

	if r, ok := q.(eventqueue.StatsReporter); ok {
		if stats, ok := r.BucketStats(); ok {
			rsp.Stats = &stats
		}
	}

	return rsp
}

func (m *Monitor) listQueues(w http.ResponseWriter, _ *http.Request) {
	queues := m.snapshotQueues()

	rsp := make([]queueRsp, 0, len(queues))
	for _, nq := range queues {
		rsp = append(rsp, describeQueue(nq.name, nq.queue))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) queueDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	q, ok := m.findQueue(name)
	if !ok {
		http.Error(w, "queue not found", http.StatusNotFound)
		return
	}

	detail := describeQueue(name, q)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(2)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

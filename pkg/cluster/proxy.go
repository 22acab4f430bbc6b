package cluster

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// upgrader accepts WebSocket upgrades from any origin: the caller (the
// player's browser, via the frontend-facing service) has already been
// authorized before reaching this route.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS bridges a WebSocket connection to a single TCP port inside an
// environment's pod, via an SPDY port-forward session to the API server.
// It implements httpserver.EnvironmentProxy.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, environmentID string, port int) {
	ctx := r.Context()

	pod, err := m.clientset.CoreV1().Pods(m.namespace).Get(ctx, podName(environmentID), metav1.GetOptions{})
	if err != nil {
		http.Error(w, "environment not found", http.StatusNotFound)
		return
	}

	transport, upgraderRT, err := spdy.RoundTripperFor(m.restConfig)
	if err != nil {
		m.logger.Error("building spdy round tripper", "error", err)
		http.Error(w, "proxy unavailable", http.StatusInternalServerError)
		return
	}

	req := m.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(m.namespace).
		Name(pod.Name).
		SubResource("portforward").
		URL()

	dialer := spdy.NewDialer(upgraderRT, &http.Client{Transport: transport}, http.MethodPost, req)

	readyCh := make(chan struct{})
	stopCh := make(chan struct{})
	defer close(stopCh)

	fw, err := portforward.New(dialer, []string{fmt.Sprintf("0:%d", port)}, stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		m.logger.Error("creating port forwarder", "error", err)
		http.Error(w, "proxy unavailable", http.StatusInternalServerError)
		return
	}

	forwardErrCh := make(chan error, 1)
	go func() { forwardErrCh <- fw.ForwardPorts() }()

	select {
	case <-readyCh:
	case err := <-forwardErrCh:
		m.logger.Error("port forward failed before ready", "error", err)
		http.Error(w, "proxy unavailable", http.StatusBadGateway)
		return
	}

	ports, err := fw.GetPorts()
	if err != nil || len(ports) == 0 {
		m.logger.Error("reading forwarded port", "error", err)
		http.Error(w, "proxy unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", ports[0].Local))
	if err != nil {
		m.logger.Error("dialing forwarded port", "error", err)
		http.Error(w, "proxy unavailable", http.StatusBadGateway)
		return
	}
	defer conn.Close()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("upgrading websocket", "error", err)
		return
	}
	defer ws.Close()

	bridge(ws, conn, m.logger)
}

// bridge copies bytes bidirectionally between a WebSocket connection and a
// raw TCP connection until either side closes.
func bridge(ws *websocket.Conn, conn net.Conn, logger *slog.Logger) {
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if _, err := conn.Write(data); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					logger.Debug("tcp read ended", "error", err)
				}
				return
			}
		}
	}()

	<-done
}

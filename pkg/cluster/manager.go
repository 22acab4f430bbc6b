// Package cluster is the Environment Manager: it realizes a challenge's
// container template as a live (pod, service) pair on Kubernetes, and tears
// it down again on expiry or explicit deletion.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/google/uuid"

	"github.com/cdsctf/cdsctfd/pkg/model"
)

// defaultFlagEnvVarName is injected when a flag declares no EnvVarName of
// its own.
const defaultFlagEnvVarName = "FLAG"

// renewalWindow bounds how far ahead of an environment's current expiry a
// renewal is allowed to land.
const renewalWindow = 10 * time.Minute

// ErrNoMoreRenewal is returned when an environment has already been renewed
// model.MaxRenewals times.
var ErrNoMoreRenewal = fmt.Errorf("environment has reached its renewal limit")

// ErrRenewalWindow is returned when a renewal is requested too far ahead of
// the environment's current expiry.
var ErrRenewalWindow = fmt.Errorf("environment is not yet within its renewal window")

// LoadRestConfig builds a Kubernetes client config from a kubeconfig file,
// or from the in-cluster service account when kubeconfigPath is empty.
func LoadRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("loading in-cluster config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig %q: %w", kubeconfigPath, err)
	}
	return cfg, nil
}

// Manager creates, renews, and tears down challenge environments in a
// single Kubernetes namespace.
type Manager struct {
	clientset    kubernetes.Interface
	restConfig   *rest.Config
	namespace    string
	publicEntry  string
	proxyEnabled bool
	logger       *slog.Logger
}

// New creates a Manager from an in-cluster or kubeconfig-derived rest.Config.
// proxyEnabled selects the Service type environments are published with:
// ClusterIP (traffic WebSocket-proxied through this process) when true,
// NodePort (players connect directly) when false.
func New(restConfig *rest.Config, namespace, publicEntry string, proxyEnabled bool, logger *slog.Logger) (*Manager, error) {
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	return &Manager{
		clientset:    clientset,
		restConfig:   restConfig,
		namespace:    namespace,
		publicEntry:  publicEntry,
		proxyEnabled: proxyEnabled,
		logger:       logger,
	}, nil
}

// CreateChallengeEnv spawns a new environment for the given challenge,
// owned by user/team/game. A Dynamic flag's [UUID] token is substituted
// with a freshly generated id before being injected into the container.
func (m *Manager) CreateChallengeEnv(ctx context.Context, userID, teamID, gameID int64, challenge model.Challenge) (model.Environment, error) {
	if challenge.Env == nil {
		return model.Environment{}, fmt.Errorf("challenge %s has no environment template", challenge.ID)
	}

	resourceID := uuid.NewString()
	flag, flagValue, hasFlag := resolveFlag(challenge)

	envVars := make([]corev1.EnvVar, 0, len(challenge.Env.Envs)+1)
	for k, v := range challenge.Env.Envs {
		envVars = append(envVars, corev1.EnvVar{Name: k, Value: v})
	}
	if hasFlag {
		name := flag.EnvVarName
		if name == "" {
			name = defaultFlagEnvVarName
		}
		envVars = append(envVars, corev1.EnvVar{Name: name, Value: flagValue})
	}

	containerPorts := make([]corev1.ContainerPort, 0, len(challenge.Env.Ports))
	servicePorts := make([]corev1.ServicePort, 0, len(challenge.Env.Ports))
	for _, p := range challenge.Env.Ports {
		containerPorts = append(containerPorts, corev1.ContainerPort{ContainerPort: int32(p)})
		servicePorts = append(servicePorts, corev1.ServicePort{
			Name:       fmt.Sprintf("port-%d", p),
			Port:       int32(p),
			TargetPort: intOrStringFromInt(p),
		})
	}

	resources, err := buildResourceRequirements(challenge.Env.CPULimit, challenge.Env.MemoryLimitMiB)
	if err != nil {
		return model.Environment{}, fmt.Errorf("building resource requirements: %w", err)
	}

	duration := time.Duration(challenge.Env.DurationSeconds) * time.Second
	labels := m.labelsFor(resourceID, userID, teamID, gameID, challenge.ID)
	annotations, err := m.annotationsFor(duration, 0, challenge.Env.Ports, nil, flagValue, challenge)
	if err != nil {
		return model.Environment{}, fmt.Errorf("building annotations: %w", err)
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        podName(resourceID),
			Namespace:   m.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:            "challenge",
					Image:           challenge.Env.Image,
					ImagePullPolicy: corev1.PullIfNotPresent,
					Env:             envVars,
					Ports:           containerPorts,
					Resources:       resources,
				},
			},
		},
	}

	if _, err := m.clientset.CoreV1().Pods(m.namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return model.Environment{}, fmt.Errorf("creating pod: %w", err)
	}

	svcType := corev1.ServiceTypeNodePort
	if m.proxyEnabled {
		svcType = corev1.ServiceTypeClusterIP
	}

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        serviceName(resourceID),
			Namespace:   m.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{labelResourceID: resourceID},
			Ports:    servicePorts,
			Type:     svcType,
		},
	}

	created, err := m.clientset.CoreV1().Services(m.namespace).Create(ctx, svc, metav1.CreateOptions{})
	if err != nil {
		if delErr := m.clientset.CoreV1().Pods(m.namespace).Delete(ctx, podName(resourceID), metav1.DeleteOptions{}); delErr != nil && !apierrors.IsNotFound(delErr) {
			m.logger.Error("deleting pod after service create failed", "resource_id", resourceID, "error", delErr)
		}
		return model.Environment{}, fmt.Errorf("creating service: %w", err)
	}

	nats := natsFromService(created, svcType)
	if err := m.patchPodAnnotation(ctx, podName(resourceID), annotationNats, formatNats(nats)); err != nil {
		m.logger.Error("patching nats annotation", "resource_id", resourceID, "error", err)
	}

	return model.Environment{
		ID:          resourceID,
		UserID:      userID,
		TeamID:      teamID,
		GameID:      gameID,
		ChallengeID: challenge.ID,
		Ports:       challenge.Env.Ports,
		Nats:        nats,
		Status:      "Pending",
		Duration:    duration,
		Renew:       0,
		StartedAt:   time.Now(),
		PublicEntry: m.publicEntry,
	}, nil
}

// natsFromService derives the container-port-to-published-port mapping from
// a created Service. For NodePort services this is the cluster-assigned
// nodePort; for ClusterIP (proxied) services there is no external port, so
// the container port itself is used since the ws-proxy dials the pod
// directly.
func natsFromService(svc *corev1.Service, svcType corev1.ServiceType) map[int]int {
	nats := make(map[int]int, len(svc.Spec.Ports))
	for _, sp := range svc.Spec.Ports {
		container := int(sp.Port)
		if svcType == corev1.ServiceTypeNodePort && sp.NodePort != 0 {
			nats[container] = int(sp.NodePort)
		} else {
			nats[container] = container
		}
	}
	return nats
}

// RenewChallengeEnv extends an environment's lease by one duration unit, up
// to model.MaxRenewals times, and only once its current expiry is within
// renewalWindow.
func (m *Manager) RenewChallengeEnv(ctx context.Context, environmentID string) (model.Environment, error) {
	env, err := m.GetEnvironment(ctx, environmentID)
	if err != nil {
		return model.Environment{}, err
	}
	if env.Renew >= model.MaxRenewals {
		return model.Environment{}, ErrNoMoreRenewal
	}
	if env.ExpiresAt().Sub(time.Now()) > renewalWindow {
		return model.Environment{}, ErrRenewalWindow
	}

	if err := m.patchPodAnnotation(ctx, podName(environmentID), annotationRenew, strconv.Itoa(env.Renew+1)); err != nil {
		return model.Environment{}, fmt.Errorf("patching renew annotation: %w", err)
	}

	env.Renew++
	return env, nil
}

// DeleteChallengeEnv tears down an environment's pod (with a zero grace
// period) and service. Missing objects are not an error: deletion is
// idempotent.
func (m *Manager) DeleteChallengeEnv(ctx context.Context, environmentID string) error {
	grace := int64(0)
	if err := m.clientset.CoreV1().Pods(m.namespace).Delete(ctx, podName(environmentID), metav1.DeleteOptions{GracePeriodSeconds: &grace}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting pod: %w", err)
	}
	if err := m.clientset.CoreV1().Services(m.namespace).Delete(ctx, serviceName(environmentID), metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting service: %w", err)
	}
	return nil
}

// GetEnvironment reads a single environment back from its pod.
func (m *Manager) GetEnvironment(ctx context.Context, environmentID string) (model.Environment, error) {
	pod, err := m.clientset.CoreV1().Pods(m.namespace).Get(ctx, podName(environmentID), metav1.GetOptions{})
	if err != nil {
		return model.Environment{}, fmt.Errorf("getting pod: %w", err)
	}
	return m.environmentFromPod(pod), nil
}

// ListEnvironments returns every environment this manager owns in its
// namespace, including ones in a terminal phase (the reaper needs to see
// those to delete them).
func (m *Manager) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	pods, err := m.clientset.CoreV1().Pods(m.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", labelApp, appValue),
	})
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}

	envs := make([]model.Environment, 0, len(pods.Items))
	for i := range pods.Items {
		envs = append(envs, m.environmentFromPod(&pods.Items[i]))
	}
	return envs, nil
}

func (m *Manager) environmentFromPod(pod *corev1.Pod) model.Environment {
	userID, _ := strconv.ParseInt(pod.Labels[labelUserID], 10, 64)
	teamID, _ := strconv.ParseInt(pod.Labels[labelTeamID], 10, 64)
	gameID, _ := strconv.ParseInt(pod.Labels[labelGameID], 10, 64)
	renew, _ := strconv.Atoi(pod.Annotations[annotationRenew])
	durationSeconds, _ := strconv.ParseInt(pod.Annotations[annotationDuration], 10, 64)

	var ports []int
	if raw := pod.Annotations[annotationPorts]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &ports)
	}

	status, reason := podPhaseToStatus(pod.Status)

	return model.Environment{
		ID:          pod.Labels[labelResourceID],
		UserID:      userID,
		TeamID:      teamID,
		GameID:      gameID,
		ChallengeID: pod.Labels[labelChallengeID],
		Ports:       ports,
		Nats:        parseNats(pod.Annotations[annotationNats]),
		Status:      status,
		Reason:      reason,
		Duration:    time.Duration(durationSeconds) * time.Second,
		Renew:       renew,
		StartedAt:   pod.CreationTimestamp.Time,
		PublicEntry: m.publicEntry,
	}
}

func podPhaseToStatus(status corev1.PodStatus) (string, string) {
	switch status.Phase {
	case corev1.PodRunning:
		return "Running", ""
	case corev1.PodFailed:
		return "Failed", status.Reason
	case corev1.PodSucceeded:
		return "Succeeded", ""
	case corev1.PodUnknown:
		return "Unknown", status.Reason
	default:
		return "Pending", status.Reason
	}
}

func (m *Manager) labelsFor(resourceID string, userID, teamID, gameID int64, challengeID string) map[string]string {
	return map[string]string{
		labelApp:         appValue,
		labelResourceID:  resourceID,
		labelUserID:      strconv.FormatInt(userID, 10),
		labelTeamID:      strconv.FormatInt(teamID, 10),
		labelGameID:      strconv.FormatInt(gameID, 10),
		labelChallengeID: challengeID,
	}
}

func (m *Manager) annotationsFor(duration time.Duration, renew int, ports []int, nats map[int]int, flagValue string, challenge model.Challenge) (map[string]string, error) {
	portsJSON, err := json.Marshal(ports)
	if err != nil {
		return nil, err
	}
	challengeJSON, err := json.Marshal(challenge.Desensitize())
	if err != nil {
		return nil, err
	}

	return map[string]string{
		annotationDuration:  strconv.FormatInt(int64(duration.Seconds()), 10),
		annotationRenew:     strconv.Itoa(renew),
		annotationPorts:     string(portsJSON),
		annotationNats:      formatNats(nats),
		annotationFlag:      flagValue,
		annotationChallenge: string(challengeJSON),
	}, nil
}

func (m *Manager) patchPodAnnotation(ctx context.Context, pod, key, value string) error {
	patch := []byte(fmt.Sprintf(`{"metadata":{"annotations":{%q:%q}}}`, key, value))
	_, err := m.clientset.CoreV1().Pods(m.namespace).Patch(ctx, pod, stratMergeType, patch, metav1.PatchOptions{})
	return err
}

// resolveFlag returns the challenge's primary flag together with its
// value, substituting the dynamic token with a fresh UUID when the flag is
// Dynamic. The third return value is false when the challenge declares no
// flag at all.
func resolveFlag(challenge model.Challenge) (model.Flag, string, bool) {
	flag, ok := challenge.PrimaryFlag()
	if !ok {
		return model.Flag{}, "", false
	}
	if flag.Type != model.FlagDynamic {
		return flag, flag.Value, true
	}
	id := uuid.NewString()
	return flag, replaceTokenFold(flag.Value, model.DynamicToken, id), true
}

// replaceTokenFold replaces every case-insensitive occurrence of token in s
// with replacement, without altering the case of the rest of s.
func replaceTokenFold(s, token, replacement string) string {
	upper := strings.ToUpper(s)
	token = strings.ToUpper(token)
	var b strings.Builder
	for {
		i := strings.Index(upper, token)
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		b.WriteString(replacement)
		s = s[i+len(token):]
		upper = upper[i+len(token):]
	}
	return b.String()
}

func buildResourceRequirements(cpuLimit string, memoryLimitMiB int64) (corev1.ResourceRequirements, error) {
	requests := corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse("10m"),
		corev1.ResourceMemory: *resource.NewQuantity(32*1024*1024, resource.BinarySI),
	}

	limits := corev1.ResourceList{}
	if cpuLimit != "" {
		q, err := resource.ParseQuantity(cpuLimit)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("parsing cpu limit %q: %w", cpuLimit, err)
		}
		limits[corev1.ResourceCPU] = q
	}
	if memoryLimitMiB > 0 {
		limits[corev1.ResourceMemory] = *resource.NewQuantity(memoryLimitMiB*1024*1024, resource.BinarySI)
	}
	return corev1.ResourceRequirements{Requests: requests, Limits: limits}, nil
}

func podName(resourceID string) string     { return "cds-" + resourceID }
func serviceName(resourceID string) string { return "cds-" + resourceID }

package cluster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const stratMergeType = types.StrategicMergePatchType

func intOrStringFromInt(port int) intstr.IntOrString {
	return intstr.FromInt(port)
}

// formatNats renders a container-port-to-nodePort mapping as
// "containerPort=nodePort,...", sorted by container port for determinism.
func formatNats(nats map[int]int) string {
	ports := make([]int, 0, len(nats))
	for p := range nats {
		ports = append(ports, p)
	}
	sort.Ints(ports)

	pairs := make([]string, 0, len(ports))
	for _, p := range ports {
		pairs = append(pairs, fmt.Sprintf("%d=%d", p, nats[p]))
	}
	return strings.Join(pairs, ",")
}

// parseNats is the inverse of formatNats; malformed pairs are skipped.
func parseNats(s string) map[int]int {
	nats := map[int]int{}
	if s == "" {
		return nats
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		cp, err1 := strconv.Atoi(k)
		np, err2 := strconv.Atoi(v)
		if err1 != nil || err2 != nil {
			continue
		}
		nats[cp] = np
	}
	return nats
}

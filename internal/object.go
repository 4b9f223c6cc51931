package internal

import (
	corev1 "k8s.io/api/core/v1"
)

const phaseRunning = string(corev1.PodRunning)

type PodEventType int

const (
	InitialSync PodEventType = iota
	InitialSyncDone
	Applied
	Deleted
)

func (t PodEventType) String() string {
	switch t {
	case InitialSync:
		return "InitialSync"
	case InitialSyncDone:
		return "InitialSyncDone"
	case Applied:
		return "Applied"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// PodEvent is one entry of the namespace pod feed. Pod is only set for
// Applied and Deleted.
type PodEvent struct {
	Type PodEventType
	Pod  PodSnapshot
}

type PodSnapshot struct {
	Name       string
	Phase      string
	Containers []string
}

// SnapshotOf reduces a pod to the fields the watch loop cares about.
func SnapshotOf(pod *corev1.Pod) PodSnapshot {
	s := PodSnapshot{
		Name:       pod.Name,
		Phase:      string(pod.Status.Phase),
		Containers: make([]string, 0, len(pod.Spec.Containers)),
	}
	if s.Phase == "" {
		s.Phase = "Unknown"
	}
	for _, c := range pod.Spec.Containers {
		s.Containers = append(s.Containers, c.Name)
	}
	return s
}

type TaskKey struct {
	Pod       string
	Container string
}

func (k TaskKey) String() string {
	return k.Pod + "/" + k.Container
}

// Envelope carries one error record from a tailer to the dispatcher.
type Envelope struct {
	Record    Record
	Container string
	Pod       string
}

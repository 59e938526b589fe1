package workflow

import "fmt"

// ActorRule names a class of actor allowed to take an edge
type ActorRule string

const (
	ActorSystem            ActorRule = "system"
	ActorAdmin             ActorRule = "admin"
	ActorFinance           ActorRule = "finance"
	ActorSubmitter         ActorRule = "submitter"
	ActorEffectiveApprover ActorRule = "effective_approver"
	ActorOperationsRoom    ActorRule = "operations_room"
)

// Edge is a permitted transition between two statuses
type Edge struct {
	From     Status
	To       Status
	Actors   []ActorRule
	Approval bool
}

// Has reports whether the edge lists the rule
func (e Edge) Has(rule ActorRule) bool {
	for _, r := range e.Actors {
		if r == rule {
			return true
		}
	}
	return false
}

// GraphBuilder builds an immutable transition graph
type GraphBuilder interface {
	// Configure returns the configuration for edges leaving the given status
	Configure(status Status) StatusConfiguration

	// Build freezes the configured edges into a Graph
	Build(family Family) *Graph
}

// StatusConfiguration configures edges leaving one status
type StatusConfiguration interface {
	// Permit allows moving to the target status for the listed actors
	Permit(to Status, actors ...ActorRule) StatusConfiguration

	// PermitApproval is Permit for edges subject to the self-approval rule
	PermitApproval(to Status, actors ...ActorRule) StatusConfiguration
}

type statusConfig struct {
	from  Status
	edges map[Status]Edge
}

type graphBuilder struct {
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new graph builder
func NewBuilder() GraphBuilder {
	return &graphBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns the configuration for the given status
func (b *graphBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			from:  status,
			edges: make(map[Status]Edge),
		}
		b.configurations[status] = config
	}

	return config
}

// Build copies the configured edges so later builder use cannot change the graph
func (b *graphBuilder) Build(family Family) *Graph {
	if !family.IsValid() {
		panic(fmt.Sprintf("invalid family: %s", family))
	}

	edges := make(map[Status]map[Status]Edge, len(b.configurations))
	for from, config := range b.configurations {
		out := make(map[Status]Edge, len(config.edges))
		for to, edge := range config.edges {
			edge.Actors = append([]ActorRule{}, edge.Actors...)
			out[to] = edge
		}
		edges[from] = out
	}

	return &Graph{family: family, edges: edges}
}

func (c *statusConfig) Permit(to Status, actors ...ActorRule) StatusConfiguration {
	return c.permit(to, false, actors)
}

func (c *statusConfig) PermitApproval(to Status, actors ...ActorRule) StatusConfiguration {
	return c.permit(to, true, actors)
}

func (c *statusConfig) permit(to Status, approval bool, actors []ActorRule) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if len(actors) == 0 {
		panic(fmt.Sprintf("edge %s -> %s has no actors", c.from, to))
	}

	c.edges[to] = Edge{
		From:     c.from,
		To:       to,
		Actors:   actors,
		Approval: approval,
	}

	return c
}

// Graph is the frozen transition table of one family
type Graph struct {
	family Family
	edges  map[Status]map[Status]Edge
}

// Family returns the family the graph belongs to
func (g *Graph) Family() Family {
	return g.family
}

// Edge returns the edge between two statuses if it exists
func (g *Graph) Edge(from, to Status) (Edge, bool) {
	edge, ok := g.edges[from][to]
	return edge, ok
}

// CanTransition reports whether the edge exists, ignoring actors and fields
func (g *Graph) CanTransition(from, to Status) bool {
	_, ok := g.Edge(from, to)
	return ok
}

// Targets returns the statuses reachable in one step from the given status
func (g *Graph) Targets(from Status) []Status {
	out := make([]Status, 0, len(g.edges[from]))
	for to := range g.edges[from] {
		out = append(out, to)
	}
	return out
}

// Visits reports whether any edge of the graph touches the status
func (g *Graph) Visits(status Status) bool {
	for from, out := range g.edges {
		if from == status {
			return true
		}
		if _, ok := out[status]; ok {
			return true
		}
	}
	return false
}

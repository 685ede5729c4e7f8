package manager

import (
	"sort"

	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/server"
)

// roster 不可变名册快照
//
// 写操作通过 with*/without* 构造新快照，原快照不被修改。
type roster struct {
	servers      map[string]*server.Server
	associations map[string]*association.Association
}

func emptyRoster() *roster {
	return &roster{
		servers:      map[string]*server.Server{},
		associations: map[string]*association.Association{},
	}
}

func (r *roster) copyServers() map[string]*server.Server {
	out := make(map[string]*server.Server, len(r.servers)+1)
	for k, v := range r.servers {
		out[k] = v
	}
	return out
}

func (r *roster) copyAssociations() map[string]*association.Association {
	out := make(map[string]*association.Association, len(r.associations)+1)
	for k, v := range r.associations {
		out[k] = v
	}
	return out
}

func (r *roster) withServer(s *server.Server) *roster {
	servers := r.copyServers()
	servers[s.Name()] = s
	return &roster{servers: servers, associations: r.associations}
}

func (r *roster) withoutServer(name string) *roster {
	servers := r.copyServers()
	delete(servers, name)
	return &roster{servers: servers, associations: r.associations}
}

func (r *roster) withAssociation(a *association.Association) *roster {
	assocs := r.copyAssociations()
	assocs[a.Name()] = a
	return &roster{servers: r.servers, associations: assocs}
}

func (r *roster) withoutAssociation(name string) *roster {
	assocs := r.copyAssociations()
	delete(assocs, name)
	return &roster{servers: r.servers, associations: assocs}
}

func (r *roster) sortedServers() []*server.Server {
	out := make([]*server.Server, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *roster) sortedAssociations() []*association.Association {
	out := make([]*association.Association, 0, len(r.associations))
	for _, a := range r.associations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

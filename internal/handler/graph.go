package handler

import (
	"net/http"

	"nodeclass/internal/domain"
)

// ListNodes returns every node
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Nodes.ListNodes(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, nodes, http.StatusOK)
}

// GetNode returns a node with its parameter overrides
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.Nodes.GetNode(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, node, http.StatusOK)
}

// CreateNodeRequest is the body of POST /api/nodes
type CreateNodeRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// CreateNode creates a node
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	node := domain.NewNode(req.Name)
	node.Description = req.Description
	for k, v := range req.Parameters {
		node.SetParameter(k, v)
	}

	if err := h.svc.Nodes.Create(r.Context(), node); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, node, http.StatusCreated)
}

// SetNodeParameters replaces a node's parameter overrides
func (h *Handler) SetNodeParameters(w http.ResponseWriter, r *http.Request) {
	var params map[string]string
	if err := decodeJSON(r, &params); err != nil {
		h.writeError(w, r, err)
		return
	}
	if params == nil {
		params = map[string]string{}
	}

	if err := h.svc.Nodes.SetParameters(r.Context(), r.PathValue("name"), params); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNode removes a node and its memberships
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Nodes.Delete(r.Context(), r.PathValue("name")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListClasses returns every class
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.svc.Classes.ListClasses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, classes, http.StatusOK)
}

// CreateClass creates a class
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var class domain.NodeClass
	if err := decodeJSON(r, &class); err != nil {
		h.writeError(w, r, err)
		return
	}
	class.ID = 0

	if err := h.svc.Classes.Create(r.Context(), &class); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, class, http.StatusCreated)
}

// ListGroups returns every group with its direct associations
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Groups.ListGroups(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, groups, http.StatusOK)
}

// GetGroup returns one group
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	group, err := h.svc.Groups.GetGroup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, group, http.StatusOK)
}

// CreateGroupRequest is the body of POST /api/groups
type CreateGroupRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ClassIDs    []int64           `json:"node_class_ids,omitempty"`
	SubgroupIDs []int64           `json:"node_group_ids,omitempty"`
	NodeIDs     []int64           `json:"node_ids,omitempty"`
}

// CreateGroup creates a group with its initial associations
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	group := domain.NewNodeGroup(req.Name, req.Description)
	for k, v := range req.Parameters {
		group.Parameters[k] = v
	}
	group.ClassIDs = req.ClassIDs
	group.SubgroupIDs = req.SubgroupIDs
	group.NodeIDs = req.NodeIDs

	if err := h.svc.Groups.CreateGroup(r.Context(), group); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, group, http.StatusCreated)
}

// UpdateGroup applies a partial update. Omitted fields are untouched and
// an empty list or object clears the association.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var update domain.GroupUpdate
	if err := decodeJSON(r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.svc.Groups.UpdateGroup(r.Context(), id, update); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGroup removes a group and every edge touching it
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Groups.DeleteGroup(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSubgroupRequest is the body of POST /api/groups/{id}/subgroups
type AddSubgroupRequest struct {
	ChildID int64 `json:"child_id"`
}

// AddSubgroup proposes an inclusion edge from the path group to child_id
func (h *Handler) AddSubgroup(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req AddSubgroupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ChildID <= 0 {
		h.badRequest(w, "child_id is required")
		return
	}

	if err := h.svc.Groups.ProposeInclusion(r.Context(), parentID, req.ChildID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, domain.Inclusion{ParentID: parentID, ChildID: req.ChildID}, http.StatusCreated)
}

// RemoveSubgroup deletes an inclusion edge
func (h *Handler) RemoveSubgroup(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	childID, err := pathID(r, "child")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Groups.RemoveInclusion(r.Context(), parentID, childID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateMembershipRequest is the body of POST /api/memberships. Either the
// identifier pair or the name pair must be given.
type CreateMembershipRequest struct {
	NodeID    int64  `json:"node_id,omitempty"`
	GroupID   int64  `json:"node_group_id,omitempty"`
	NodeName  string `json:"node_name,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}

// CreateMembership adds a node to a group
func (h *Handler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	var req CreateMembershipRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	byID := req.NodeID > 0 || req.GroupID > 0
	byName := req.NodeName != "" || req.GroupName != ""

	var err error
	switch {
	case byID && byName:
		h.badRequest(w, "give either node_id and node_group_id or node_name and group_name")
		return
	case byID:
		err = h.svc.Memberships.Create(r.Context(), req.NodeID, req.GroupID)
	case byName:
		err = h.svc.Memberships.CreateByName(r.Context(), req.NodeName, req.GroupName)
	default:
		h.badRequest(w, "node_id and node_group_id or node_name and group_name are required")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, req, http.StatusCreated)
}

// DeleteMembership removes the membership named by the node_id and
// node_group_id query parameters
func (h *Handler) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	nodeID, err := queryID(r, "node_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	groupID, err := queryID(r, "node_group_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Memberships.Delete(r.Context(), nodeID, groupID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

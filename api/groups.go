package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/OgheneDev/FlowChat/chat"
)

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request, uid string) {
	req := &chat.CreateGroupReq{}
	if err := readJSON(r, req); err != nil {
		writeError(w, err)
		return
	}
	g, out, err := s.service.CreateGroup(r.Context(), uid, req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request, uid string) {
	req := &chat.UpdateGroupReq{}
	if err := readJSON(r, req); err != nil {
		writeError(w, err)
		return
	}
	g, out, err := s.service.UpdateGroup(r.Context(), uid, mux.Vars(r)["groupId"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) addMembers(w http.ResponseWriter, r *http.Request, uid string) {
	req := &chat.MembersReq{}
	if err := readJSON(r, req); err != nil {
		writeError(w, err)
		return
	}
	g, out, err := s.service.AddMembers(r.Context(), uid, mux.Vars(r)["groupId"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) promoteAdmin(w http.ResponseWriter, r *http.Request, uid string) {
	req := &chat.PromoteReq{}
	if err := readJSON(r, req); err != nil {
		writeError(w, err)
		return
	}
	g, out, err := s.service.PromoteAdmin(r.Context(), uid, mux.Vars(r)["groupId"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request, uid string) {
	vars := mux.Vars(r)
	out, err := s.service.RemoveMember(r.Context(), uid, vars["groupId"], vars["memberId"])
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exitGroup(w http.ResponseWriter, r *http.Request, uid string) {
	out, err := s.service.ExitGroup(r.Context(), uid, mux.Vars(r)["groupId"])
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request, uid string) {
	out, err := s.service.DeleteGroup(r.Context(), uid, mux.Vars(r)["groupId"])
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ApplyAs(uid, out)
	w.WriteHeader(http.StatusNoContent)
}

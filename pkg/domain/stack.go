package domain

import "encoding/json"

// ConversationStack holds the frames of nested conversations. The top of
// the stack is the most recently active domain.
type ConversationStack struct {
	frames []*ConversationState
}

// NewConversationStack builds a stack from bottom to top.
func NewConversationStack(bottomToTop ...*ConversationState) *ConversationStack {
	return &ConversationStack{frames: append([]*ConversationState(nil), bottomToTop...)}
}

// Push places a frame on top.
func (s *ConversationStack) Push(f *ConversationState) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame, or nil when empty.
func (s *ConversationStack) Pop() *ConversationState {
	if len(s.frames) == 0 {
		return nil
	}
	top := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return top
}

// Peek returns the top frame, or nil when empty.
func (s *ConversationStack) Peek() *ConversationState {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Remove deletes f from the stack wherever it is. It reports whether f was found.
func (s *ConversationStack) Remove(f *ConversationState) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i] == f {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of frames.
func (s *ConversationStack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Frames returns the frames from top to bottom.
func (s *ConversationStack) Frames() []*ConversationState {
	out := make([]*ConversationState, 0, len(s.frames))
	for i := len(s.frames) - 1; i >= 0; i-- {
		out = append(out, s.frames[i])
	}
	return out
}

// Clone deep-copies every frame.
func (s *ConversationStack) Clone() *ConversationStack {
	out := &ConversationStack{frames: make([]*ConversationState, len(s.frames))}
	for i, f := range s.frames {
		out.frames[i] = f.Clone()
	}
	return out
}

// MarshalJSON encodes the frames bottom to top. Graphs are not encoded; they
// are reattached from the registry on load.
func (s *ConversationStack) MarshalJSON() ([]byte, error) {
	frames := s.frames
	if frames == nil {
		frames = []*ConversationState{}
	}
	return json.Marshal(frames)
}

// UnmarshalJSON decodes frames written by MarshalJSON.
func (s *ConversationStack) UnmarshalJSON(b []byte) error {
	var frames []*ConversationState
	if err := json.Unmarshal(b, &frames); err != nil {
		return err
	}
	for _, f := range frames {
		if f.Session == nil {
			f.Session = NewDataStore()
		}
	}
	s.frames = frames
	return nil
}

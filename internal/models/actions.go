package models

type ActionType string

const (
	ActionMessage       ActionType = "message"
	ActionTyping        ActionType = "typing"
	ActionRequestStatus ActionType = "request_status"
	ActionMarkRead      ActionType = "mark_read"
	ActionLike          ActionType = "like"
	ActionComment       ActionType = "comment"
	ActionCallInitiate  ActionType = "call_initiate"
	ActionCallAccept    ActionType = "call_accept"
	ActionCallReject    ActionType = "call_reject"
	ActionCallEnd       ActionType = "call_end"
	ActionOffer         ActionType = "webrtc_offer"
	ActionAnswer        ActionType = "webrtc_answer"
	ActionICECandidate  ActionType = "webrtc_ice_candidate"
)

// Action is the outbound envelope. Build instances through the constructors
// below so every variant carries exactly the fields its action expects.
type Action struct {
	Action ActionType `json:"action"`

	Message    string   `json:"message,omitempty"`
	IsTyping   *bool    `json:"is_typing,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
	Content    string   `json:"content,omitempty"`

	CallType  CallType            `json:"call_type,omitempty"`
	CallID    string              `json:"call_id,omitempty"`
	Offer     *SessionDescription `json:"offer,omitempty"`
	Answer    *SessionDescription `json:"answer,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`
}

func MessageAction(content string) Action {
	return Action{Action: ActionMessage, Message: content}
}

func TypingAction(isTyping bool) Action {
	return Action{Action: ActionTyping, IsTyping: &isTyping}
}

func RequestStatusAction() Action {
	return Action{Action: ActionRequestStatus}
}

func MarkReadAction(messageIDs []string) Action {
	return Action{Action: ActionMarkRead, MessageIDs: messageIDs}
}

func LikeAction() Action {
	return Action{Action: ActionLike}
}

func CommentAction(content string) Action {
	return Action{Action: ActionComment, Content: content}
}

func CallInitiateAction(callType CallType) Action {
	return Action{Action: ActionCallInitiate, CallType: callType}
}

func CallAcceptAction(callID string) Action {
	return Action{Action: ActionCallAccept, CallID: callID}
}

func CallRejectAction(callID string) Action {
	return Action{Action: ActionCallReject, CallID: callID}
}

func CallEndAction(callID string) Action {
	return Action{Action: ActionCallEnd, CallID: callID}
}

func OfferAction(offer SessionDescription) Action {
	return Action{Action: ActionOffer, Offer: &offer}
}

func AnswerAction(answer SessionDescription) Action {
	return Action{Action: ActionAnswer, Answer: &answer}
}

func ICECandidateAction(candidate ICECandidate) Action {
	return Action{Action: ActionICECandidate, Candidate: &candidate}
}

// SPDX-License-Identifier: MIT

package notify

// Summary is the title every popup carries.
const Summary = "Lifeboat"

const (
	armedPointerBody = "Emergency backup software was activated. By drawing a:\n- clockwise rectangle you will confirm\n- counterclockwise rectangle you will cancel"
	armedChordBody   = "Emergency backup software was activated. By making 3 consecutive quick clicks:\n- left clicks you will confirm\n- right clicks you will cancel"
	startedBody      = "Backup started"
	canceledBody     = "Backup canceled"
	doneBody         = "Backup done"
	fallbackErrBody  = "An error occurred"
)

// Content resolves the body, freedesktop icon name and urgency for a
// notification.
func (n Notification) Content() (body, icon, urgency string) {
	switch n.Kind {
	case ArmedPointer:
		return armedPointerBody, "dialog-information", "normal"
	case ArmedChord:
		return armedChordBody, "dialog-information", "normal"
	case Started:
		return startedBody, "dialog-information", "normal"
	case Canceled:
		return canceledBody, "dialog-warning", "normal"
	case Done:
		return doneBody, "face-smile", "normal"
	default:
		body := n.Message
		if body == "" {
			body = fallbackErrBody
		}
		return body, "dialog-error", "critical"
	}
}

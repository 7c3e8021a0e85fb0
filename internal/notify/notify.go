package notify

import (
	"log"

	"github.com/gen2brain/beeep"
)

// Desktop presents reminders through the host notification service.
type Desktop struct {
	enabled bool
	icon    string
}

func NewDesktop(enabled bool, icon string) *Desktop {
	return &Desktop{enabled: enabled, icon: icon}
}

func (d *Desktop) Notify(title, message string, playSound, urgent bool) error {
	if !d.enabled {
		return nil
	}
	if urgent {
		return beeep.Alert(title, message, d.icon)
	}
	if err := beeep.Notify(title, message, d.icon); err != nil {
		return err
	}
	if playSound {
		// Sound is best effort; the notification already showed.
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			log.Printf("notify: failed to play sound: %v", err)
		}
	}
	return nil
}

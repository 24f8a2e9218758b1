package shield

// CrisisResources is returned verbatim whenever control mode is active.
const CrisisResources = `It sounds like you're going through something really painful, and I'm glad you said something. You don't have to face this alone.

If you are in immediate danger, please call your local emergency number now.

- US: call or text 988 (Suicide & Crisis Lifeline), available 24/7
- UK & Ireland: call Samaritans at 116 123
- Elsewhere: find a local helpline at https://findahelpline.com

If you can, reach out to someone you trust and let them know how you're feeling right now.`

// HardVetoMessage is returned when a request is refused outright.
const HardVetoMessage = "I can't help with this. If someone may be in danger, please contact local emergency services."

// SoftVetoMessage asks the user to confirm before the request proceeds.
const SoftVetoMessage = "This looks like a decision with serious consequences that are hard to undo. Please confirm you'd like to continue, and I'll help you think it through carefully."

package deletion

// Arguments: app name, confirmation link, lifetime in minutes.
const confirmationEmailText = `We received a request to delete your %[1]s account.

To confirm, open this link: %[2]s

The link expires in %[3]d minutes. If you did not ask for this, ignore this email and your account will stay as it is.`

// Arguments: app name, confirmation link, lifetime in minutes, copyright year.
const confirmationEmailHTML = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #1f2937; background-color: #f3f4f6; margin: 0; padding: 20px; }
.container { padding: 20px; max-width: 600px; margin: 20px auto; background-color: #ffffff; border: 1px solid #e5e7eb; border-radius: 8px; }
.header { font-size: 24px; font-weight: bold; color: #b91c1c; margin-bottom: 15px; }
.content { padding: 20px; text-align: center; }
.button { display: inline-block; padding: 12px 24px; margin: 20px 0; background-color: #b91c1c; color: #ffffff; text-decoration: none; border-radius: 5px; font-weight: bold; }
.footer { margin-top: 20px; font-size: 12px; color: #6b7280; text-align: center; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>Confirm Account Deletion</h2>
    </div>
    <div class="content">
      <p>We received a request to delete your %[1]s account. This permanently removes your login and profile data.</p>
      <a class="button" href="%[2]s">Delete my account</a>
      <p>This link expires in %[3]d minutes. If you did not request deletion, you can ignore this email.</p>
    </div>
    <div class="footer">
      &copy; %[4]d %[1]s. All rights reserved.
    </div>
  </div>
</body>
</html>`
